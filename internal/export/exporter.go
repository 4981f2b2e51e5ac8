// Package export writes flagged conversations and risk profile snapshots to disk.
package export

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/sentinel/internal/common/types"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/export/csv"
	"github.com/robalyx/sentinel/internal/export/sqlite"
	exportTypes "github.com/robalyx/sentinel/internal/export/types"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned when no profile snapshot exists in the directory.
var ErrNoSnapshot = errors.New("no profile snapshot found")

// SnapshotPattern matches profile snapshot file names.
const SnapshotPattern = "user_risk_profiles_*.json"

// Result lists the files written by ExportAll.
type Result struct {
	ProfilesPath string
	ReportPath   string
	DatabasePath string
}

// Exporter writes exports under a single directory.
type Exporter struct {
	outDir string
	csv    *csv.Exporter
	sqlite *sqlite.Exporter
	logger *zap.Logger
	clock  func() time.Time
	mu     sync.Mutex
}

// New creates the output directory if needed and returns an Exporter.
func New(outDir string, logger *zap.Logger, clock func() time.Time) (*Exporter, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	if clock == nil {
		clock = time.Now
	}

	return &Exporter{
		outDir: outDir,
		csv:    csv.New(outDir),
		sqlite: sqlite.New(outDir),
		logger: logger.Named("export"),
		clock:  clock,
	}, nil
}

// Dir returns the output directory.
func (e *Exporter) Dir() string {
	return e.outDir
}

// ShouldSave reports whether a processed message belongs in the flagged-conversation log.
func ShouldSave(result types.ClassificationResult, assessment escalation.Assessment) bool {
	return result.Flagged() || assessment.Decision.Escalate
}

// AppendFlagged appends a processed message to the daily flagged-conversation log.
func (e *Exporter) AppendFlagged(
	msg types.Message, result types.ClassificationResult, assessment escalation.Assessment,
	conversationID string, contextLen int,
) (string, error) {
	path, err := e.csv.AppendConversation(&exportTypes.FlaggedConversation{
		Timestamp:           e.clock(),
		MessageID:           msg.ID,
		ConversationID:      conversationID,
		UserID:              msg.AuthorID,
		Username:            msg.AuthorName,
		GuildID:             msg.GuildID,
		GuildName:           msg.GuildName,
		ChannelID:           msg.ChannelID,
		ChannelName:         msg.ChannelName,
		MessageContent:      msg.Content,
		GroomingProbability: result.GroomingProbability,
		ModelConfidence:     result.Confidence,
		RiskLevel:           string(assessment.Level),
		RiskScore:           assessment.Score,
		ShouldEscalate:      assessment.Decision.Escalate,
		EscalationReason:    assessment.Decision.Reason,
		ContextLength:       max(contextLen, 1),
		CreatedAt:           msg.CreatedAt,
	})
	if err != nil {
		return "", err
	}

	e.logger.Debug("Flagged conversation saved",
		zap.String("path", path),
		zap.String("conversation_id", conversationID))

	return path, nil
}

// SaveProfiles writes a JSON snapshot keyed by user ID.
func (e *Exporter) SaveProfiles(profiles []*risk.Profile) (string, error) {
	return e.saveProfiles(profiles, e.clock())
}

func (e *Exporter) saveProfiles(profiles []*risk.Profile, now time.Time) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make(map[string]*risk.Profile, len(profiles))
	for _, p := range profiles {
		snapshot[strconv.FormatUint(p.UserID, 10)] = p
	}

	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal profiles: %w", err)
	}

	path := filepath.Join(e.outDir, "user_risk_profiles_"+now.Format("20060102_150405")+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write profiles: %w", err)
	}

	e.logger.Info("User profiles saved", zap.String("path", path), zap.Int("count", len(profiles)))

	return path, nil
}

// ExportAll writes the JSON snapshot, the flagged-users report and the profile database concurrently.
func (e *Exporter) ExportAll(ctx context.Context, profiles []*risk.Profile) (*Result, error) {
	now := e.clock()
	users, predictions := summarize(profiles)

	var result Result

	p := pool.New().WithErrors().WithContext(ctx)

	p.Go(func(context.Context) error {
		path, err := e.saveProfiles(profiles, now)
		result.ProfilesPath = path

		return err
	})

	p.Go(func(context.Context) error {
		path, err := e.csv.WriteUsers(users, now)
		result.ReportPath = path

		return err
	})

	p.Go(func(context.Context) error {
		path, err := e.sqlite.Export(users, predictions, now)
		result.DatabasePath = path

		return err
	})

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	e.logger.Info("Export completed",
		zap.String("profiles", result.ProfilesPath),
		zap.String("report", result.ReportPath),
		zap.String("database", result.DatabasePath))

	return &result, nil
}

// LoadProfiles reads a JSON snapshot written by SaveProfiles.
func LoadProfiles(path string) ([]*risk.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot map[string]*risk.Profile
	if err := sonic.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	profiles := make([]*risk.Profile, 0, len(snapshot))

	for key, p := range snapshot {
		if p == nil {
			continue
		}

		userID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q in snapshot: %w", key, err)
		}

		p.UserID = userID
		profiles = append(profiles, p)
	}

	slices.SortFunc(profiles, func(a, b *risk.Profile) int {
		return cmp.Compare(a.UserID, b.UserID)
	})

	return profiles, nil
}

// LatestSnapshot returns the newest profile snapshot in dir.
func LatestSnapshot(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, SnapshotPattern))
	if err != nil {
		return "", err
	}

	if len(matches) == 0 {
		return "", ErrNoSnapshot
	}

	// Names embed a sortable timestamp
	slices.Sort(matches)

	return matches[len(matches)-1], nil
}

// summarize flattens profiles into report rows.
func summarize(profiles []*risk.Profile) ([]*exportTypes.UserSummary, []*exportTypes.PredictionRecord) {
	users := make([]*exportTypes.UserSummary, 0, len(profiles))

	var predictions []*exportTypes.PredictionRecord

	for _, p := range profiles {
		decision := escalation.Evaluate(p)

		users = append(users, &exportTypes.UserSummary{
			UserID:           p.UserID,
			RiskScore:        p.RiskScore,
			RiskLevel:        string(p.Level()),
			TotalMessages:    p.TotalMessages,
			FlaggedMessages:  p.FlaggedMessages,
			ShouldEscalate:   decision.Escalate,
			EscalationReason: decision.Reason,
			LastUpdated:      p.LastUpdated,
			HighestRiskScore: p.HighestRiskScore,
		})

		for _, h := range p.PredictionHistory {
			predictions = append(predictions, &exportTypes.PredictionRecord{
				UserID:              p.UserID,
				Timestamp:           h.Timestamp,
				GroomingProbability: h.GroomingProbability,
				Confidence:          h.Confidence,
				PredictedClass:      h.PredictedClass,
				Error:               h.Err,
			})
		}
	}

	return users, predictions
}
