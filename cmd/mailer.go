/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/roomdesk/apiserver/config"
	"github.com/roomdesk/apiserver/internal/mailer"
	"github.com/roomdesk/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd represents the mailer command
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Delivers queued mails over SMTP",
	Long: `Consumes the mail queue filled by the API server when MAIL_TRANSPORT=queue
and delivers every message through the configured SMTP relay.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger()

		sender, err := mailer.NewSMTPSender(cfg.Mail)
		if err != nil {
			return err
		}

		backend, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		defer backend.Close()

		worker := mailer.NewWorker(backend, cfg.Mail.QueueChannel, sender, logger)
		return worker.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
