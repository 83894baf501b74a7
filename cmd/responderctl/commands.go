package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/config"
	"github.com/Cypherspark/sms-autoresponder/internal/core"
	"github.com/Cypherspark/sms-autoresponder/internal/logger"
	"github.com/Cypherspark/sms-autoresponder/internal/storage"
)

type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *storage.Backend
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "responderctl",
		Short:         "Operate the SMS auto-responder store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			store, err := storage.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			if cfg.AutoMigrate && cmd.Name() != "migrate" {
				if err := store.Migrate(ctx); err != nil {
					_ = store.Close()
					return err
				}
			}
			a.cfg, a.log, a.store = cfg, log, store
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}

	campaign := &cobra.Command{Use: "campaign", Short: "Manage keyword campaigns"}
	campaign.AddCommand(a.createCampaignCmd(), a.listCampaignsCmd())
	root.AddCommand(a.migrateCmd(), campaign)
	return root
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema for the configured store driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", a.store.Driver)
			return nil
		},
	}
}

func (a *app) createCampaignCmd() *cobra.Command {
	var in core.NewCampaign
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Name = strings.TrimSpace(in.Name)
			in.ResponseMessage = strings.TrimSpace(in.ResponseMessage)
			if core.NormalizeKeyword(in.Keyword) == "" || in.ResponseMessage == "" {
				return errors.New("--keyword and --response must not be blank")
			}
			c, err := a.store.Campaigns.Create(cmd.Context(), in)
			if errors.Is(err, core.ErrDuplicateKeyword) {
				return core.ErrDuplicateKeyword
			}
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(c)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "campaign name (required)")
	f.StringVar(&in.Keyword, "keyword", "", "trigger keyword (required)")
	f.StringVar(&in.ResponseMessage, "response", "", "reply text (required)")
	f.StringVar(&in.OwnerID, "owner", "", "owner id (required)")
	f.StringVar(&in.Type, "type", "", "campaign type")
	f.StringToStringVar(&in.TemplateData, "data", nil, "template data key=value pairs")
	for _, name := range []string{"name", "keyword", "response", "owner"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) listCampaignsCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's campaigns as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.store.Campaigns.ListByOwner(cmd.Context(), owner)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, c := range items {
				if err := enc.Encode(c); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
