package config

import (
	"context"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/filestore"
)

// Load reads the document at uri into v. The document may be YAML or JSON
// and may live on local disk, gs:// or s3://. ${VAR} and ${VAR:-default}
// references are substituted from the environment before parsing.
func Load(ctx context.Context, uri string, v interface{}, opts filestore.Options) error {
	data, err := filestore.ReadFile(ctx, uri, opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config").WithDetail("path", uri)
	}
	return nil
}

// LoadConfig reads a tap configuration. The result is not validated, so
// command line overrides can be applied before calling Validate.
func LoadConfig(ctx context.Context, uri string, opts filestore.Options) (*Config, error) {
	var cfg Config
	if err := Load(ctx, uri, &cfg, opts); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default}. Unset variables
// without a default become empty. An unterminated reference is left as is.
func substituteEnvVars(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	for {
		start := strings.Index(content, "${")
		if start == -1 {
			b.WriteString(content)
			return b.String()
		}
		end := strings.IndexByte(content[start:], '}')
		if end == -1 {
			b.WriteString(content)
			return b.String()
		}
		end += start

		b.WriteString(content[:start])

		ref := content[start+2 : end]
		name, def, hasDefault := strings.Cut(ref, ":-")
		value, ok := os.LookupEnv(name)
		if (!ok || value == "") && hasDefault {
			value = def
		}
		b.WriteString(value)

		content = content[end+1:]
	}
}
