package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/robalyx/sentinel/internal/setup"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ErrStorageDisabled is returned when no stats driver is configured.
var ErrStorageDisabled = errors.New("stats storage is disabled in common.toml")

// StatsCommands returns commands that read the stats store.
func StatsCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "user",
			Usage:     "Print the stored stats and conversations of a user as JSON",
			ArgsUsage: "USER_ID",
			Action:    handleUser(deps),
		},
	}
}

// handleUser handles the 'stats user' command.
func handleUser(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		userID, err := parseUserID(c.Args().First())
		if err != nil {
			return err
		}

		store, err := setup.OpenStats(ctx, &deps.Config.Common, deps.Logger)
		if err != nil {
			return err
		}

		if store == nil {
			return ErrStorageDisabled
		}
		defer store.Close()

		stats, err := store.GetUserStats(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				deps.Logger.Info("No stats stored for user", zap.Uint64("user_id", userID))
				return nil
			}

			return err
		}

		out, err := sonic.ConfigStd.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}

		_, err = fmt.Fprintln(os.Stdout, string(out))

		return err
	}
}

func parseUserID(arg string) (uint64, error) {
	if arg == "" {
		return 0, ErrUserIDRequired
	}

	userID, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || userID == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUserID, arg)
	}

	return userID, nil
}
