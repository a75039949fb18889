package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"challenge-proof-system/utils"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// ObjectStore is durable, write-once storage for proof images.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Artifact is the uploaded proof image.
type Artifact struct {
	Filename    string
	Data        []byte
	ContentType string
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// SubmissionIntake validates proof images and stages them in object storage.
type SubmissionIntake struct {
	store    ObjectStore
	maxBytes int64
	now      func() time.Time
	log      *zap.Logger
}

func NewSubmissionIntake(store ObjectStore, maxBytes int64, log *zap.Logger) *SubmissionIntake {
	return &SubmissionIntake{store: store, maxBytes: maxBytes, now: time.Now, log: log}
}

// Validate checks the artifact without touching the network and returns the
// content type to store it under.
func (in *SubmissionIntake) Validate(challengeID string, a Artifact) (string, error) {
	if strings.TrimSpace(challengeID) == "" {
		return "", fmt.Errorf("%w: challenge is required", ErrValidation)
	}
	if len(a.Data) == 0 {
		return "", fmt.Errorf("%w: proof image is required", ErrValidation)
	}
	if in.maxBytes > 0 && int64(len(a.Data)) > in.maxBytes {
		return "", fmt.Errorf("%w: proof image too large (%d bytes, max %d)", ErrValidation, len(a.Data), in.maxBytes)
	}

	sniffed := http.DetectContentType(a.Data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	// HEIC and friends are not sniffable; trust the declared type only then
	declared := strings.ToLower(strings.TrimSpace(a.ContentType))
	if sniffed == "application/octet-stream" && strings.HasPrefix(declared, "image/") {
		return declared, nil
	}
	return "", fmt.Errorf("%w: proof must be an image, got %s", ErrValidation, sniffed)
}

// Stage writes the artifact under {challengeID}/{unixMillis}_{filename} and
// returns its public URL. Store failures are reported as ErrUploadFailure and
// are not retried.
func (in *SubmissionIntake) Stage(ctx context.Context, challengeID string, a Artifact) (string, error) {
	contentType, err := in.Validate(challengeID, a)
	if err != nil {
		return "", err
	}

	key := ObjectKey(challengeID, in.now(), a.Filename, contentType)
	url, err := in.store.Put(ctx, key, a.Data, contentType)
	if err != nil {
		if errors.Is(err, utils.ErrObjectExists) {
			in.log.Warn("[INTAKE] object key already taken", zap.String("key", key))
		}
		return "", fmt.Errorf("%w: %w", ErrUploadFailure, err)
	}

	in.log.Info("[INTAKE] 📸 proof staged",
		zap.String("challenge_id", challengeID),
		zap.String("key", key),
		zap.Int("bytes", len(a.Data)),
	)
	return url, nil
}

// ObjectKey builds the storage path for a proof image.
func ObjectKey(challengeID string, at time.Time, filename, contentType string) string {
	return challengeID + "/" + strconv.FormatInt(at.UnixMilli(), 10) + "_" + safeFilename(filename, contentType)
}

// safeFilename keeps the client's name readable but URL- and path-safe.
func safeFilename(name, contentType string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	ext := strings.ToLower(filepath.Ext(name))
	base := slug.Make(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "proof"
	}

	ext = "." + slug.Make(strings.TrimPrefix(ext, "."))
	if ext == "." {
		ext = imageExtensions[contentType]
	}
	return base + ext
}
