/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/roomdesk/apiserver/config"
	"github.com/roomdesk/apiserver/internal/db"
	"github.com/roomdesk/apiserver/internal/schedule"
	"github.com/roomdesk/apiserver/internal/services"
	"github.com/roomdesk/apiserver/internal/storage"
	"github.com/roomdesk/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var exportWeek string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Archives weekly room schedules to object storage",
	Long: `Writes the Sunday to Saturday schedule of every visible room to the
configured object storage. Usage:

	roomdesk export --week 2025-07-18
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger()
		loc := cfg.Booking.Location()

		at := time.Now()
		if exportWeek != "" {
			day, err := schedule.ParseDate(exportWeek, loc)
			if err != nil {
				return err
			}
			at = day
		}

		archive, err := storage.OpenArchive(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("open object storage: %w", err)
		}
		if archive == nil {
			return errors.New("STORAGE_BACKEND is none; nothing to export to")
		}

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		exporter := services.NewExportService(
			store.NewReservationRepository(dbConn),
			store.NewRoomRepository(dbConn),
			archive,
			services.SystemClock,
			loc,
			logger,
		)
		keys, err := exporter.ExportWeek(cmd.Context(), at)
		if err != nil {
			return err
		}
		logger.Info("export finished", "objects", len(keys))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportWeek, "week", "", "any date (YYYY-MM-DD) inside the week to export; defaults to the current week")
}
