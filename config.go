package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

var _ Config = (*Options)(nil)

// Options is the environment backed Config.
type Options struct {
	BaseURL        string        `env:"FLEXMON_API_BASE_URL" envDefault:"http://localhost:8080/api" json:"base_url"`
	TokenKey       string        `env:"FLEXMON_TOKEN_KEY" envDefault:"flexmon_token" json:"token_key"`
	LoginPath      string        `env:"FLEXMON_LOGIN_PATH" envDefault:"/login" json:"login_path"`
	TenantID       string        `env:"FLEXMON_TENANT_ID" json:"tenant_id"`
	TenantHeader   string        `env:"FLEXMON_TENANT_HEADER" envDefault:"X-Tenant-Id" json:"tenant_header"`
	CredentialsDSN string        `env:"FLEXMON_CREDENTIALS_DSN" envDefault:"file:flexmon-console.db" json:"credentials_dsn"`
	RequestTimeout time.Duration `env:"FLEXMON_REQUEST_TIMEOUT" envDefault:"30s" json:"request_timeout"`
}

// LoadOptions reads Options from the environment and validates them.
func LoadOptions() (*Options, error) {
	opts := &Options{}
	if err := env.Parse(opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "unable to parse environment")
	}

	if err := opts.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid console configuration").
			WithCode(goerrors.CodeBadRequest)
	}

	return opts, nil
}

// Validate checks the options
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BaseURL, validation.Required, is.URL),
		validation.Field(&o.TokenKey, validation.Required),
		validation.Field(&o.LoginPath, validation.Required),
		validation.Field(&o.TenantHeader, validation.Required),
		validation.Field(&o.CredentialsDSN, validation.Required),
		validation.Field(&o.RequestTimeout, validation.Min(time.Second)),
	)
}

func (o Options) GetBaseURL() string {
	return o.BaseURL
}

func (o Options) GetTokenKey() string {
	return o.TokenKey
}

func (o Options) GetLoginPath() string {
	return o.LoginPath
}

func (o Options) GetTenantID() string {
	return o.TenantID
}

func (o Options) GetTenantHeader() string {
	return o.TenantHeader
}

func (o Options) GetCredentialsDSN() string {
	return o.CredentialsDSN
}

func (o Options) GetRequestTimeout() time.Duration {
	return o.RequestTimeout
}
