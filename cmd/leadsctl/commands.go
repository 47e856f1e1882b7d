package main

import (
	"fmt"
	"strings"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/models"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connectDB()
			if err != nil {
				return err
			}
			if err := models.MigrateTable(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newCreateBusinessCmd() *cobra.Command {
	var input models.NewBusiness
	cmd := &cobra.Command{
		Use:   "create-business",
		Short: "Register a business and seed its default pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := connectDB(); err != nil {
				return err
			}
			business, err := models.CreateBusiness(cmd.Context(), &input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created business %s (%s)\n", business.ID, business.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "business name")
	cmd.Flags().StringVar(&input.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&input.Timezone, "timezone", "", "IANA timezone (default America/New_York)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSeedPipelineCmd() *cobra.Command {
	var businessId string
	cmd := &cobra.Command{
		Use:   "seed-pipeline",
		Short: "Create any missing default pipeline stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := businessCtx(cmd, businessId)
			if err != nil {
				return err
			}
			if _, err := connectDB(); err != nil {
				return err
			}
			stages, err := models.SeedDefaultStages(ctx, businessId)
			if err != nil {
				return err
			}
			for _, s := range stages {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", s.SortOrder, s.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&businessId, "business", "", "business id")
	return cmd
}

func newSeedAdminCmd() *cobra.Command {
	var businessId, username, password, name string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin user, or reset an existing user's password and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := businessCtx(cmd, businessId)
			if err != nil {
				return err
			}
			db, err := connectDB()
			if err != nil {
				return err
			}
			if len(password) < 8 {
				return fmt.Errorf("--password must be at least 8 characters")
			}
			ctx = config.WithoutTenantScope(ctx)

			var existing models.User
			err = db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Limit(1).Find(&existing).Error
			if err != nil {
				return err
			}
			if existing.ID == 0 {
				u, err := models.CreateUser(ctx, &models.NewUser{
					BusinessId: businessId,
					Username:   username,
					Name:       name,
					Password:   password,
					Role:       models.UserRoleAdmin,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin user %q (id=%d)\n", u.Username, u.ID)
				return nil
			}

			hashed, err := utils.HashPassword(password)
			if err != nil {
				return err
			}
			if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
				"password":    string(hashed),
				"is_active":   utils.NewTrue(),
				"business_id": businessId,
				"role":        models.UserRoleAdmin,
			}).Error; err != nil {
				return err
			}
			_ = existing.RemoveInstanceRedis()
			fmt.Fprintf(cmd.OutOrStdout(), "updated admin user %q (id=%d)\n", existing.Username, existing.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&businessId, "business", "", "business id")
	cmd.Flags().StringVar(&username, "username", "admin", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newIssueIntakeTokenCmd() *cobra.Command {
	var businessId string
	var campaignId int
	cmd := &cobra.Command{
		Use:   "issue-intake-token",
		Short: "Print a token that lets a public form post leads into a campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := businessCtx(cmd, businessId)
			if err != nil {
				return err
			}
			if _, err := connectDB(); err != nil {
				return err
			}
			token, err := models.IssueIntakeToken(ctx, campaignId)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires %s\n", token.Token, token.ExpiresAt.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&businessId, "business", "", "business id")
	cmd.Flags().IntVar(&campaignId, "campaign", 0, "campaign id")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func newReplayOutboxCmd() *cobra.Command {
	var businessId string
	var id int
	cmd := &cobra.Command{
		Use:   "replay-outbox",
		Short: "Queue a FAILED or DEAD outbox message for another publish attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := businessCtx(cmd, businessId)
			if err != nil {
				return err
			}
			if _, err := connectDB(); err != nil {
				return err
			}
			msg, err := models.ReplayOutboxMessage(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "outbox %d (%s) is %s\n", msg.ID, msg.EventType, msg.PublishStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&businessId, "business", "", "business id")
	cmd.Flags().IntVar(&id, "id", 0, "outbox message id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newSetupPubSubCmd() *cobra.Command {
	var subscription, endpoint string
	cmd := &cobra.Command{
		Use:   "setup-pubsub",
		Short: "Create the event topic and the push subscription to /pubsub",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := config.GetClient(ctx)
			if err != nil {
				return err
			}
			topic, err := config.CreateTopicIfNotExists(ctx, client, config.EventTopic())
			if err != nil {
				return err
			}
			if _, err := config.CreatePushSubscriptionIfNotExists(ctx, client, subscription, topic, endpoint); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topic %s -> subscription %s\n", topic.ID(), subscription)
			return nil
		},
	}
	cmd.Flags().StringVar(&subscription, "subscription", "leads-events-push", "subscription name")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "push endpoint, e.g. https://api.example.com/pubsub")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}
