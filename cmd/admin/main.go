package main

import (
	"context"
	"dailymatch/backend/internal/analysis"
	"dailymatch/backend/internal/auth"
	"dailymatch/backend/internal/config"
	"dailymatch/backend/internal/events"
	"dailymatch/backend/internal/matching"
	"dailymatch/backend/internal/storage"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  verify <member_id> <rank>    record a verified rank
  revoke <member_id>           clear a member's rank and verification
  sweep                        run one expiry sweep now
  stats [hours]                wait times by rank over the last hours (default 24)
  token <member_id> [nickname] mint an identity token for local testing`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	command := os.Args[1]
	if command == "token" {
		if err := mintToken(cfg, os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("error minting token")
		}
		return
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	storageSvc := storage.NewStorageService(db) // No redis needed for admin CLI
	svc := matching.NewService(storageSvc, cfg.Matching, events.Nop{}, nil)

	ctx := context.Background()

	switch command {
	case "verify":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin verify <member_id> <rank>")
			os.Exit(1)
		}
		memberID, rank := os.Args[2], os.Args[3]
		if err := svc.RecordRank(ctx, memberID, rank); err != nil {
			log.Fatal().Err(err).Msg("error verifying member")
		}
		fmt.Printf("Member %s is verified as %s.\n", memberID, rank)
	case "revoke":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin revoke <member_id>")
			os.Exit(1)
		}
		memberID := os.Args[2]
		if err := storageSvc.RevokeRank(ctx, memberID); err != nil {
			log.Fatal().Err(err).Msg("error revoking rank")
		}
		fmt.Printf("Member %s is no longer verified.\n", memberID)
	case "sweep":
		reaper := matching.NewReaper(storageSvc, storageSvc, events.Nop{}, cfg.Matching.SweepInterval)
		expired, err := reaper.Sweep(ctx, time.Now().UTC())
		if err != nil {
			log.Fatal().Err(err).Msg("error sweeping queue")
		}
		fmt.Printf("Expired %d queue entries.\n", expired)
	case "stats":
		hours := 24
		if len(os.Args) > 2 {
			hours, err = strconv.Atoi(os.Args[2])
			if err != nil || hours <= 0 {
				fmt.Println("Invalid hours. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		stats, err := svc.WaitTimes(ctx, time.Now().UTC().Add(-time.Duration(hours)*time.Hour))
		if err != nil {
			log.Fatal().Err(err).Msg("error reading wait times")
		}
		printStats(stats)
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func mintToken(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: admin token <member_id> [nickname]")
	}
	nickname := ""
	if len(args) > 1 {
		nickname = args[1]
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL).GenerateToken(args[0], nickname)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func printStats(stats []analysis.RankWaitStats) {
	if len(stats) == 0 {
		fmt.Println("No matches in this period.")
		return
	}
	fmt.Printf("%-10s %8s %10s %10s %10s\n", "RANK", "MATCHED", "AVERAGE", "MEDIAN", "MAX")
	for _, s := range stats {
		fmt.Printf("%-10s %8d %10s %10s %10s\n", s.Rank, s.Matched,
			s.Average.Round(time.Second), s.Median.Round(time.Second), s.Max.Round(time.Second))
	}
}
