// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CrawX/gitlab-issue-by-mail/credential"
	"github.com/CrawX/gitlab-issue-by-mail/log"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	EnvGitlabToken  = "GITLAB_TOKEN"
	EnvGitlabHost   = "GITLAB_HOST"
	EnvMailUsername = "MAIL_USERNAME"
	EnvMailPassword = "MAIL_PASSWORD"
)

type Config struct {
	Gitlab   Gitlab  `toml:"gitlab" yaml:"gitlab"`
	Mail     Mail    `toml:"mail" yaml:"mail"`
	Loglevel *string `toml:"loglevel" yaml:"loglevel"`
}

type Gitlab struct {
	Token     string    `toml:"token" yaml:"token"`
	ProjectId ProjectId `toml:"projectId" yaml:"projectId"`
	Host      string    `toml:"host" yaml:"host"`
}

type Mail struct {
	Server             string   `toml:"server" yaml:"server"`
	Port               int      `toml:"port" yaml:"port"`
	Type               MailType `toml:"type" yaml:"type"`
	Username           string   `toml:"username" yaml:"username"`
	Password           string   `toml:"password" yaml:"password"`
	Mailbox            string   `toml:"mailbox" yaml:"mailbox"`
	InsecureSkipVerify bool     `toml:"insecureSkipVerify" yaml:"insecureSkipVerify"`
}

// SecretSource looks up secrets that are missing from file and environment.
type SecretSource interface {
	Get(key string) (string, error)
}

// ReadConfig loads filename (TOML or YAML, chosen by extension), applies environment
// overrides, falls back to secrets for a missing gitlab token and validates the result.
// secrets may be nil.
func ReadConfig(filename string, secrets SecretSource) (*Config, error) {
	config := &Config{
		Mail: Mail{
			Type:    MailImap,
			Mailbox: "INBOX",
		},
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		err = decodeToml(content, config)
	case ".yml", ".yaml":
		err = decodeYaml(content, config)
	default:
		return nil, fmt.Errorf("could not read config file: unsupported format %q, use .toml, .yml or .yaml", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	config.applyEnv()

	if len(strings.TrimSpace(config.Gitlab.Token)) == 0 && secrets != nil {
		config.Gitlab.Token = tokenFromSecrets(secrets)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func decodeToml(content []byte, config *Config) error {
	md, err := toml.Decode(string(content), config)
	if err != nil {
		return fmt.Errorf("could not parse config file: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("could not parse config file: unknown keys %s", strings.Join(keys, ", "))
	}

	return nil
}

func decodeYaml(content []byte, config *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	err := dec.Decode(config)
	if err != nil {
		return fmt.Errorf("could not parse config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env   string
		field *string
	}{
		{EnvGitlabToken, &c.Gitlab.Token},
		{EnvGitlabHost, &c.Gitlab.Host},
		{EnvMailUsername, &c.Mail.Username},
		{EnvMailPassword, &c.Mail.Password},
	}

	l := log.Logger(log.LOG_CONFIG)
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && len(value) > 0 {
			l.WithField("variable", o.env).Debug("Using value from environment")
			*o.field = value
		}
	}
}

func tokenFromSecrets(secrets SecretSource) string {
	l := log.Logger(log.LOG_CONFIG)

	token, err := secrets.Get(credential.GitlabTokenKey)
	if errors.Is(err, credential.ErrNotFound) {
		l.Debug("No gitlab token in keyring")
		return ""
	}
	if err != nil {
		l.WithField("error", err).Warn("Could not read gitlab token from keyring")
		return ""
	}

	l.Debug("Using gitlab token from keyring")
	return token
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Gitlab.Token, "gitlab.token must not be empty, set it in the config file, in "+EnvGitlabToken+" or in the keyring"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(string(c.Gitlab.ProjectId), "gitlab.projectId must not be empty, set to the numeric id or the path of the project"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Gitlab.Host, "gitlab.host must not be empty, set to the base URL of the gitlab instance"); err != nil {
		return err
	}

	host, err := url.Parse(c.Gitlab.Host)
	if err != nil || (host.Scheme != "http" && host.Scheme != "https") || len(host.Host) == 0 {
		return fmt.Errorf("gitlab.host must be a http or https URL, got %q", c.Gitlab.Host)
	}

	if err := validateNonEmptyStringField(c.Mail.Server, "mail.server must not be empty, set to the hostname of the mail server"); err != nil {
		return err
	}

	if c.Mail.Port < 1 || c.Mail.Port > 65535 {
		return fmt.Errorf("mail.port must be between 1 and 65535, got %d", c.Mail.Port)
	}

	c.Mail.Type, err = ParseMailType(string(c.Mail.Type))
	if err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Mail.Username, "mail.username must not be empty, set it in the config file or in "+EnvMailUsername); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Mail.Password, "mail.password must not be empty, set it in the config file or in "+EnvMailPassword); err != nil {
		return err
	}

	if c.Loglevel != nil && !log.ValidLevel(*c.Loglevel) {
		return fmt.Errorf("loglevel %q unknown, use debug, info, warn or error", *c.Loglevel)
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}

// ProjectId is either the numeric id or the namespaced path of a gitlab project.
type ProjectId string

func (p *ProjectId) UnmarshalTOML(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*p = ProjectId(strconv.FormatInt(v, 10))
	case string:
		*p = ProjectId(strings.TrimSpace(v))
	default:
		return fmt.Errorf("gitlab.projectId must be a number or a string, got %T", value)
	}
	return nil
}

func (p *ProjectId) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("gitlab.projectId must be a number or a string, line %d", value.Line)
	}
	*p = ProjectId(strings.TrimSpace(value.Value))
	return nil
}
