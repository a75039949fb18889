// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"challenge-proof-system/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches one entry of the sync service's profile feed.
type RemoteProfile struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	FirstName     *string   `json:"first_name,omitempty"`
	LastName      *string   `json:"last_name,omitempty"`
	Preferences   *string   `json:"preferences,omitempty"`
	Interests     *string   `json:"interests,omitempty"`
	Location      *string   `json:"location,omitempty"`
	AccountStatus string    `json:"account_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the sync service response.
type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors user profiles from the sync service into
// user_profiles so oracle prompts can include them without a remote call.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
	log          *zap.Logger
}

func NewProfileSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string, interval time.Duration, httpClient *http.Client, log *zap.Logger) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   httpClient,
		log:          log,
	}
}

// Run syncs once immediately, then every interval until ctx is done.
func (w *ProfileSyncWorker) Run(ctx context.Context) {
	w.log.Info("🔁 [SYNC] profile sync worker started", zap.Duration("interval", w.interval))
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("⚠️ [SYNC] initial sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("❌ [SYNC] sync batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.log.Info("⏹️ [SYNC] profile sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls changes since the newest mirrored profile and upserts them.
// It returns the number of profiles written.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.lastSyncTime(ctx)
	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	var upserted, failed int
	for _, rp := range profiles {
		if rp.ExternalID == "" {
			continue
		}
		local := models.UserProfile{
			ID:             uuid.NewString(),
			ExternalUserID: rp.ExternalID,
			DisplayName:    displayName(rp),
			Preferences:    rp.Preferences,
			Interests:      rp.Interests,
			Location:       rp.Location,
			UpdatedAt:      rp.UpdatedAt,
		}
		if rp.AccountStatus == "deactivated" {
			local.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		}

		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "preferences", "interests", "location", "updated_at", "deleted_at",
			}),
		}).Create(&local).Error; err != nil {
			failed++
			w.log.Warn("⚠️ [SYNC] failed to upsert profile", zap.String("external_id", rp.ExternalID), zap.Error(err))
			continue
		}
		upserted++
	}

	w.log.Info("✅ [SYNC] profiles synced",
		zap.Int("received", len(profiles)),
		zap.Int("upserted", upserted),
		zap.Int("errors", failed),
	)
	return upserted, nil
}

// lastSyncTime is the newest UpdatedAt mirrored so far, or the zero time.
func (w *ProfileSyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var latest []models.UserProfile
	if err := w.db.WithContext(ctx).Unscoped().
		Order("updated_at DESC").
		Limit(1).
		Find(&latest).Error; err != nil || len(latest) == 0 {
		return time.Time{}
	}
	return latest[0].UpdatedAt
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync service request failed: %w", err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service non-200 response: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sync service response: %w", err)
	}
	return out.Users, nil
}

func displayName(rp RemoteProfile) string {
	var parts []string
	if rp.FirstName != nil && *rp.FirstName != "" {
		parts = append(parts, *rp.FirstName)
	}
	if rp.LastName != nil && *rp.LastName != "" {
		parts = append(parts, *rp.LastName)
	}
	if len(parts) == 0 {
		return rp.Username
	}
	return strings.Join(parts, " ")
}
