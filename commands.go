package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"challenge-proof-system/models"
	"challenge-proof-system/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "challenge-proof",
		Short:         "Challenge proof verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, reconciler and profile sync",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Apply outstanding ledger credits once and exit",
			RunE:  runReconcile,
		},
		newSeedCmd(),
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runServer(ctx, e)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = e.log.Sync() }()

	ctx := cmd.Context()
	challenges := services.NewChallengeService(e.db)
	r := e.reconciler(challenges, services.NewRewardLedger(e.db, e.log))
	applied, err := r.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d outstanding credit(s)\n", applied)
	return nil
}

type seedFile struct {
	Challenges []models.Challenge `yaml:"challenges"`
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-challenges",
		Short: "Create challenges from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var seed seedFile
			if err := yaml.Unmarshal(raw, &seed); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = e.log.Sync() }()
			return seedChallenges(cmd.Context(), services.NewChallengeService(e.db), seed.Challenges, e.log)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "challenges.yaml", "YAML file with a top-level challenges list")
	return cmd
}

// seedChallenges creates challenges in file order, so the last one becomes current.
func seedChallenges(ctx context.Context, repo services.ChallengeRepository, challenges []models.Challenge, log *zap.Logger) error {
	base := time.Now()
	for i := range challenges {
		c := &challenges[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		}
		if err := repo.Create(ctx, c); err != nil {
			return fmt.Errorf("challenge %d (%q): %w", i, c.Title, err)
		}
		log.Info("🌱 seeded challenge", zap.String("id", c.ID), zap.String("title", c.Title))
	}
	return nil
}
