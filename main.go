// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/CrawX/gitlab-issue-by-mail/config"
	"github.com/CrawX/gitlab-issue-by-mail/credential"
	"github.com/CrawX/gitlab-issue-by-mail/domain"
	"github.com/CrawX/gitlab-issue-by-mail/fetchmail"
	"github.com/CrawX/gitlab-issue-by-mail/gitlab"
	"github.com/CrawX/gitlab-issue-by-mail/imapconnection"
	"github.com/CrawX/gitlab-issue-by-mail/log"
	"github.com/CrawX/gitlab-issue-by-mail/pop3connection"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	configFile string
	verbose    bool
	logLevel   string
	dryRun     bool
}

func main() {
	log.InitLogging("info")
	logger := log.Logger(log.LOG_MAIN)

	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "gitlab-issue-by-mail",
		Short:         "Create gitlab issues from the mails in a mailbox",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	rootCmd.Flags().StringVarP(&opts.configFile, "config", "c", "config.toml", "config file (.toml, .yml or .yaml)")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print a line for every created issue")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides loglevel from the config file")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "only show which mails would become issues, create and delete nothing")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "set-token",
		Short: "Store the gitlab token read from stdin in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setToken(cmd)
		},
	})

	err := rootCmd.Execute()
	if err != nil {
		logger.WithField("error", err).Fatal("Could not create issues from mails")
	}
}

func run(opts *options) error {
	logger := log.Logger(log.LOG_MAIN)

	if len(opts.logLevel) > 0 {
		if !log.ValidLevel(opts.logLevel) {
			return fmt.Errorf("log level %q unknown, use debug, info, warn or error", opts.logLevel)
		}
		log.SetLogLevel(opts.logLevel)
	}

	conf, err := config.ReadConfig(opts.configFile, credential.NewKeyring())
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	if conf.Loglevel != nil && len(opts.logLevel) == 0 {
		log.SetLogLevel(*conf.Loglevel)
	}

	tracker, err := gitlab.NewGitlab(conf.Gitlab.Host, conf.Gitlab.Token, string(conf.Gitlab.ProjectId))
	if err != nil {
		return fmt.Errorf("could not start gitlab connector: %w", err)
	}

	mailbox, err := openMailbox(conf.Mail)
	if err != nil {
		return fmt.Errorf("could not start mail connector: %w", err)
	}
	defer func() {
		err := mailbox.Close()
		if err != nil {
			logger.WithField("error", err).Warn("Could not close mail connection")
		}
	}()

	configs := []fetchmail.ConfigFunc{fetchmail.Output(os.Stdout)}
	if opts.dryRun {
		configs = append(configs, fetchmail.DryRun())
	}
	if opts.verbose {
		configs = append(configs, fetchmail.Verbose())
	}

	fm, err := fetchmail.NewFetchMail(mailbox, tracker, configs...)
	if err != nil {
		return fmt.Errorf("could not start fetchmail: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"server":  conf.Mail.Server,
		"type":    conf.Mail.Type,
		"project": conf.Gitlab.ProjectId,
		"dryrun":  opts.dryRun,
	}).Debug("Creating issues from mails")
	if opts.dryRun {
		logger.Warn("Skipping issue creation and mail deletion due to dry-run")
	}

	_, err = fm.Run()
	return err
}

func openMailbox(conf config.Mail) (domain.Mailbox, error) {
	if conf.Type.IsPop3() {
		conn, err := pop3connection.NewPop3Connection(pop3Options(conf))
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	conn, err := imapconnection.NewImapConnection(imapOptions(conf))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func pop3Options(conf config.Mail) pop3connection.Options {
	return pop3connection.Options{
		Server:             conf.Server,
		Port:               conf.Port,
		TLS:                conf.Type == config.MailPop3TLS,
		InsecureSkipVerify: conf.InsecureSkipVerify,
		User:               conf.Username,
		Password:           conf.Password,
	}
}

func imapOptions(conf config.Mail) imapconnection.Options {
	return imapconnection.Options{
		Server:             conf.Server,
		Port:               conf.Port,
		Security:           imapSecurity(conf.Type),
		InsecureSkipVerify: conf.InsecureSkipVerify,
		User:               conf.Username,
		Password:           conf.Password,
		Mailbox:            conf.Mailbox,
	}
}

func imapSecurity(mailType config.MailType) imapconnection.Security {
	switch mailType {
	case config.MailImapStartTLS:
		return imapconnection.SecurityStartTLS
	case config.MailImapTLS:
		return imapconnection.SecurityTLS
	}
	return imapconnection.SecurityNone
}

func setToken(cmd *cobra.Command) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Enter gitlab token:")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("could not read token: %w", err)
		}
		return fmt.Errorf("could not read token: no input")
	}

	token := strings.TrimSpace(scanner.Text())
	if len(token) == 0 {
		return fmt.Errorf("could not store token: token is empty")
	}

	err := credential.NewKeyring().Set(credential.GitlabTokenKey, token)
	if err != nil {
		return fmt.Errorf("could not store token: %w", err)
	}

	log.Logger(log.LOG_MAIN).Info("Stored gitlab token in keyring")
	return nil
}
