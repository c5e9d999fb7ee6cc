package ipsum

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/charmbracelet/log"
)

const ssmKeyPrefix = "ssm_"

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMProvider resolves SecureString parameters from AWS SSM Parameter Store,
// such as the corpus database DSN. Values are kept in a Cache for ttl; a
// failed cache write is logged and the fetched value is still returned.
type SSMProvider struct {
	ssm   SSMAPI
	ttl   time.Duration
	cache Cache
	log   *log.Logger
}

// SSMOption configures an SSMProvider.
type SSMOption func(*SSMProvider)

// WithSSMCache stores values in c instead of a private TTLCache. Keys are
// prefixed so the cache can be shared with other components.
func WithSSMCache(c Cache) SSMOption {
	return func(p *SSMProvider) { p.cache = c }
}

// WithSSMLogger sets the logger used for cache write failures.
func WithSSMLogger(lg *log.Logger) SSMOption {
	return func(p *SSMProvider) { p.log = lg }
}

func NewSSMProvider(c SSMAPI, ttl time.Duration, opts ...SSMOption) *SSMProvider {
	p := &SSMProvider{ssm: c, ttl: ttl, log: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewTTLCache[any]()
	}
	return p
}

// Get returns the decrypted parameter value.
func (p *SSMProvider) Get(ctx context.Context, name string) (string, error) {
	key := ssmKeyPrefix + name
	if v, ok := p.cache.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	out, err := p.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %q has no value", name)
	}
	val := aws.ToString(out.Parameter.Value)
	if err := p.cache.Set(key, val, p.ttl); err != nil {
		p.log.Warn("ssm cache write failed", "parameter", name, "err", err)
	}
	return val, nil
}
