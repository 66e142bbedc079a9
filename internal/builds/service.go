package builds

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ashenforge/buildshare/backend/internal/game"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "builds.service.new"
	opCreate     = "builds.create"
	opGet        = "builds.get"
	opList       = "builds.list"
	opUpdate     = "builds.update"
	opDelete     = "builds.delete"
	opVote       = "builds.vote"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 2000
	defaultPageSize      = 20
	maxPageSize          = 100
)

// ServiceConfig describes the dependencies required by the build store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	// OpTimeout bounds each storage round trip; zero disables the bound.
	OpTimeout time.Duration
}

// Service owns the build entity lifecycle and the vote ledger.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	opTimeout  time.Duration
}

// NewService constructs the build store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		opTimeout:  cfg.OpTimeout,
	}, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// CreateRequest carries the fields for a new build.
type CreateRequest struct {
	Name               string
	Description        string
	PrimaryArchetype   string
	SecondaryArchetype string
	Race               string
	Level              int
	Skills             []string
	Equipment          map[string]string
	IsPublic           bool
}

func (r CreateRequest) validate() (string, error) {
	if strings.TrimSpace(r.Name) == "" {
		return "", newValidationError("name must not be empty")
	}
	if len(r.Name) > maxNameLength {
		return "", newValidationError("name exceeds %d characters", maxNameLength)
	}
	if len(r.Description) > maxDescriptionLength {
		return "", newValidationError("description exceeds %d characters", maxDescriptionLength)
	}
	if !game.ValidArchetype(r.PrimaryArchetype) {
		return "", newValidationError("invalid primary archetype: %s", r.PrimaryArchetype)
	}
	if !game.ValidArchetype(r.SecondaryArchetype) {
		return "", newValidationError("invalid secondary archetype: %s", r.SecondaryArchetype)
	}
	if !game.ValidRace(r.Race) {
		return "", newValidationError("invalid race: %s", r.Race)
	}
	if !game.ValidLevel(r.Level) {
		return "", newValidationError("level must be between %d and %d", game.MinLevel, game.MaxLevel)
	}
	className, ok := game.ClassName(r.PrimaryArchetype, r.SecondaryArchetype)
	if !ok {
		return "", newValidationError("invalid archetype combination: %s + %s", r.PrimaryArchetype, r.SecondaryArchetype)
	}
	return className, nil
}

// Create validates the request, assigns a build id and persists the build
// under the owner identity. Validation failures never reach storage.
func (s *Service) Create(ctx context.Context, request CreateRequest, ownerIdentity string) (BuildSummary, error) {
	className, err := request.validate()
	if err != nil {
		return BuildSummary{}, err
	}

	skillsJSON, equipmentJSON, err := encodeLoadout(request.Skills, request.Equipment)
	if err != nil {
		return BuildSummary{}, newValidationError("loadout not encodable: %v", err)
	}

	buildID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return BuildSummary{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	build := Build{
		BuildID:            buildID,
		Name:               strings.TrimSpace(request.Name),
		Description:        request.Description,
		PrimaryArchetype:   game.Normalize(request.PrimaryArchetype),
		SecondaryArchetype: game.Normalize(request.SecondaryArchetype),
		ClassName:          className,
		Race:               game.Normalize(request.Race),
		Level:              request.Level,
		SkillsJSON:         skillsJSON,
		EquipmentJSON:      equipmentJSON,
		IsPublic:           request.IsPublic,
		OwnerSessionID:     ownerIdentity,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.db.WithContext(opCtx).Create(&build).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("build_id", buildID))
		return BuildSummary{}, newServiceError(opCreate, "insert_failed", err)
	}

	return BuildSummary{Build: build}, nil
}

// Get fetches one build. Private builds are indistinguishable from missing
// ones for anyone but the owner.
func (s *Service) Get(ctx context.Context, buildID, requesterIdentity string) (BuildSummary, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var build Build
	err := s.db.WithContext(opCtx).Where("build_id = ?", buildID).Take(&build).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return BuildSummary{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, "select_failed", err, zap.String("build_id", buildID))
		return BuildSummary{}, newServiceError(opGet, "select_failed", err)
	}

	if !build.IsPublic && build.OwnerSessionID != requesterIdentity {
		return BuildSummary{}, ErrNotFound
	}

	rating, err := s.ratingSummary(s.db.WithContext(opCtx), buildID)
	if err != nil {
		s.logError(opGet, "rating_query_failed", err, zap.String("build_id", buildID))
		return BuildSummary{}, newServiceError(opGet, "rating_query_failed", err)
	}

	return BuildSummary{Build: build, Rating: rating}, nil
}

// ListFilter narrows and orders the public build listing.
type ListFilter struct {
	Search             string
	ClassName          string
	PrimaryArchetype   string
	SecondaryArchetype string
	Race               string
	Sort               string
	Page               int
	PageSize           int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	switch f.Sort {
	case "newest", "rating", "popular":
	default:
		f.Sort = "newest"
	}
}

type buildRow struct {
	Build     Build    `gorm:"embedded"`
	AvgRating *float64 `gorm:"column:avg_rating"`
	VoteCount int64    `gorm:"column:vote_count"`
}

// List returns one page of public builds plus the full filtered count, so
// callers can compute page counts.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]BuildSummary, int64, error) {
	filter.normalize()

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	filtered := func() *gorm.DB {
		query := s.db.WithContext(opCtx).Model(&Build{}).Where("is_public = ?", true)
		if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
			pattern := "%" + search + "%"
			query = query.Where(
				"lower(builds.name) LIKE ? OR lower(builds.description) LIKE ? OR lower(builds.class_name) LIKE ?",
				pattern, pattern, pattern,
			)
		}
		if filter.ClassName != "" {
			query = query.Where("lower(builds.class_name) = ?", strings.ToLower(strings.TrimSpace(filter.ClassName)))
		}
		if filter.PrimaryArchetype != "" {
			query = query.Where("builds.primary_archetype = ?", game.Normalize(filter.PrimaryArchetype))
		}
		if filter.SecondaryArchetype != "" {
			query = query.Where("builds.secondary_archetype = ?", game.Normalize(filter.SecondaryArchetype))
		}
		if filter.Race != "" {
			query = query.Where("builds.race = ?", game.Normalize(filter.Race))
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		s.logError(opList, "count_failed", err)
		return nil, 0, newServiceError(opList, "count_failed", err)
	}

	const voteAggregate = "(SELECT build_id, AVG(rating) AS avg_rating, COUNT(*) AS vote_count FROM build_votes GROUP BY build_id)"
	query := filtered().
		Select("builds.*, v.avg_rating AS avg_rating, COALESCE(v.vote_count, 0) AS vote_count").
		Joins("LEFT JOIN " + voteAggregate + " v ON v.build_id = builds.build_id")

	switch filter.Sort {
	case "rating":
		query = query.Order("COALESCE(v.avg_rating, 0) DESC, COALESCE(v.vote_count, 0) DESC, builds.created_at DESC")
	case "popular":
		query = query.Order("COALESCE(v.vote_count, 0) DESC, builds.created_at DESC")
	default:
		query = query.Order("builds.created_at DESC")
	}

	var rows []buildRow
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Offset(offset).Limit(filter.PageSize).Scan(&rows).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, 0, newServiceError(opList, "query_failed", err)
	}

	items := make([]BuildSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, BuildSummary{
			Build:  row.Build,
			Rating: RatingSummary{Average: row.AvgRating, VoteCount: row.VoteCount},
		})
	}
	return items, total, nil
}

// UpdateRequest carries the mutable build fields; nil means "leave as is".
type UpdateRequest struct {
	Name        *string
	Description *string
	IsPublic    *bool
	Level       *int
	Skills      []string
	Equipment   map[string]string
}

func (r UpdateRequest) validate() error {
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			return newValidationError("name must not be empty")
		}
		if len(*r.Name) > maxNameLength {
			return newValidationError("name exceeds %d characters", maxNameLength)
		}
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLength {
		return newValidationError("description exceeds %d characters", maxDescriptionLength)
	}
	if r.Level != nil && !game.ValidLevel(*r.Level) {
		return newValidationError("level must be between %d and %d", game.MinLevel, game.MaxLevel)
	}
	return nil
}

// Update applies a partial update from the owning identity and bumps
// updated_at. The existence check runs before the ownership check so a
// non-owner probing a missing build sees not_found, never not_owner.
func (s *Service) Update(ctx context.Context, buildID string, request UpdateRequest, requesterIdentity string) (BuildSummary, error) {
	if err := request.validate(); err != nil {
		return BuildSummary{}, err
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var updated Build
	txErr := s.db.WithContext(opCtx).Transaction(func(tx *gorm.DB) error {
		var build Build
		err := tx.Where("build_id = ?", buildID).Take(&build).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			s.logError(opUpdate, "select_failed", err, zap.String("build_id", buildID))
			return newServiceError(opUpdate, "select_failed", err)
		}
		if build.OwnerSessionID != requesterIdentity {
			return ErrNotOwner
		}

		updates := map[string]any{"updated_at": s.clock().UTC()}
		if request.Name != nil {
			updates["name"] = strings.TrimSpace(*request.Name)
		}
		if request.Description != nil {
			updates["description"] = *request.Description
		}
		if request.IsPublic != nil {
			updates["is_public"] = *request.IsPublic
		}
		if request.Level != nil {
			updates["level"] = *request.Level
		}
		if request.Skills != nil || request.Equipment != nil {
			skillsJSON, equipmentJSON, err := encodeLoadout(request.Skills, request.Equipment)
			if err != nil {
				return newValidationError("loadout not encodable: %v", err)
			}
			if request.Skills != nil {
				updates["skills_json"] = skillsJSON
			}
			if request.Equipment != nil {
				updates["equipment_json"] = equipmentJSON
			}
		}

		if err := tx.Model(&Build{}).Where("build_id = ?", buildID).Updates(updates).Error; err != nil {
			s.logError(opUpdate, "update_failed", err, zap.String("build_id", buildID))
			return newServiceError(opUpdate, "update_failed", err)
		}
		return tx.Where("build_id = ?", buildID).Take(&updated).Error
	})
	if txErr != nil {
		return BuildSummary{}, txErr
	}

	rating, err := s.ratingSummary(s.db.WithContext(opCtx), buildID)
	if err != nil {
		s.logError(opUpdate, "rating_query_failed", err, zap.String("build_id", buildID))
		return BuildSummary{}, newServiceError(opUpdate, "rating_query_failed", err)
	}
	return BuildSummary{Build: updated, Rating: rating}, nil
}

// Delete removes an owned build and cascades to its votes in one
// transaction.
func (s *Service) Delete(ctx context.Context, buildID, requesterIdentity string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	return s.db.WithContext(opCtx).Transaction(func(tx *gorm.DB) error {
		var build Build
		err := tx.Where("build_id = ?", buildID).Take(&build).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			s.logError(opDelete, "select_failed", err, zap.String("build_id", buildID))
			return newServiceError(opDelete, "select_failed", err)
		}
		if build.OwnerSessionID != requesterIdentity {
			return ErrNotOwner
		}

		if err := tx.Where("build_id = ?", buildID).Delete(&Vote{}).Error; err != nil {
			s.logError(opDelete, "vote_cascade_failed", err, zap.String("build_id", buildID))
			return newServiceError(opDelete, "vote_cascade_failed", err)
		}
		if err := tx.Where("build_id = ?", buildID).Delete(&Build{}).Error; err != nil {
			s.logError(opDelete, "delete_failed", err, zap.String("build_id", buildID))
			return newServiceError(opDelete, "delete_failed", err)
		}
		return nil
	})
}

// Vote appends one row to the write-once ledger. The unique constraint on
// (build_id, session_id) is the authority on duplicates: a violation maps to
// ErrAlreadyVoted, including when concurrent requests from the same identity
// race each other. The first vote is never overwritten.
func (s *Service) Vote(ctx context.Context, buildID, voterIdentity string, rating int) (Vote, RatingSummary, error) {
	if rating < 1 || rating > 5 {
		return Vote{}, RatingSummary{}, newValidationError("rating must be between 1 and 5")
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	var build Build
	err := s.db.WithContext(opCtx).Where("build_id = ?", buildID).Take(&build).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Vote{}, RatingSummary{}, ErrNotFound
	}
	if err != nil {
		s.logError(opVote, "select_failed", err, zap.String("build_id", buildID))
		return Vote{}, RatingSummary{}, newServiceError(opVote, "select_failed", err)
	}
	if !build.IsPublic && build.OwnerSessionID != voterIdentity {
		return Vote{}, RatingSummary{}, ErrNotFound
	}

	vote := Vote{
		BuildID:        buildID,
		VoterSessionID: voterIdentity,
		Rating:         rating,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.db.WithContext(opCtx).Create(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Vote{}, RatingSummary{}, ErrAlreadyVoted
		}
		s.logError(opVote, "insert_failed", err, zap.String("build_id", buildID))
		return Vote{}, RatingSummary{}, newServiceError(opVote, "insert_failed", err)
	}

	summary, err := s.ratingSummary(s.db.WithContext(opCtx), buildID)
	if err != nil {
		s.logError(opVote, "rating_query_failed", err, zap.String("build_id", buildID))
		return Vote{}, RatingSummary{}, newServiceError(opVote, "rating_query_failed", err)
	}
	return vote, summary, nil
}

func (s *Service) ratingSummary(tx *gorm.DB, buildID string) (RatingSummary, error) {
	var row struct {
		AvgRating *float64 `gorm:"column:avg_rating"`
		VoteCount int64    `gorm:"column:vote_count"`
	}
	err := tx.Model(&Vote{}).
		Select("AVG(rating) AS avg_rating, COUNT(*) AS vote_count").
		Where("build_id = ?", buildID).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, err
	}
	return RatingSummary{Average: row.AvgRating, VoteCount: row.VoteCount}, nil
}

func encodeLoadout(skills []string, equipment map[string]string) (string, string, error) {
	if skills == nil {
		skills = []string{}
	}
	if equipment == nil {
		equipment = map[string]string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return "", "", err
	}
	equipmentJSON, err := json.Marshal(equipment)
	if err != nil {
		return "", "", err
	}
	return string(skillsJSON), string(equipmentJSON), nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("build service error", attrs...)
}
