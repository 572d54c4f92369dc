package config

const (
	oidcIssuerVar       = "OIDC_ISSUER"
	oidcClientIDVar     = "OIDC_CLIENT_ID"
	oidcClientSecretVar = "OIDC_CLIENT_SECRET"
)

// OIDCConfig describes the optional social login provider.
type OIDCConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	OIDCEnabled() bool
}

type OIDC struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

var _ OIDCConfig = OIDC{}

func (o *OIDC) applyEnv(lookup func(string) (string, bool)) {
	setString(lookup, oidcIssuerVar, &o.Issuer)
	setString(lookup, oidcClientIDVar, &o.ClientID)
	setString(lookup, oidcClientSecretVar, &o.ClientSecret)
}

func (o OIDC) GetOIDCIssuer() string {
	return o.Issuer
}

func (o OIDC) GetOIDCClientID() string {
	return o.ClientID
}

func (o OIDC) GetOIDCClientSecret() string {
	return o.ClientSecret
}

func (o OIDC) OIDCEnabled() bool {
	return o.Issuer != "" && o.ClientID != "" && o.ClientSecret != ""
}
