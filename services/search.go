package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/utils/cache"
	"gorm.io/gorm"
)

// CourseIndex ranks course ids for a free-text query. Implementations
// own their ranking; callers only see the ordered ids.
type CourseIndex interface {
	Search(ctx context.Context, query string, limit int) ([]uint, error)
}

// ilikeIndex ranks published courses by a case-insensitive match over
// title, subtitle and description. Title hits rank first.
type ilikeIndex struct {
	db *gorm.DB
}

// NewILikeIndex returns a CourseIndex backed by ILIKE queries against
// the primary database
func NewILikeIndex(db *gorm.DB) CourseIndex {
	return &ilikeIndex{db: db}
}

func (i *ilikeIndex) Search(ctx context.Context, query string, limit int) ([]uint, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"

	var ids []uint
	err := i.db.WithContext(ctx).Model(&model.Course{}).
		Where("status = ?", model.CourseStatusPublished).
		Where("title ILIKE ? OR subtitle ILIKE ? OR description ILIKE ?", pattern, pattern, pattern).
		Order(gorm.Expr("CASE WHEN title ILIKE ? THEN 0 ELSE 1 END, created_at DESC", pattern)).
		Limit(limit).
		Pluck("courses.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("searching courses: %w", err)
	}
	return ids, nil
}

// CourseSummary is a course annotated with its aggregate rating and
// enrollment count, for explore and search listings
type CourseSummary struct {
	model.Course
	AvgRating       float64 `json:"avg_rating"`
	EnrollmentCount int64   `json:"enrollment_count"`
}

// ExploreService serves the public course listings. Results are cached
// briefly in redis when a cache is wired; a cold or failing cache just
// means hitting the database.
type ExploreService struct {
	db    *gorm.DB
	index CourseIndex
	cache *cache.RedisCache
}

// NewExploreService creates a new explore service. cache may be nil.
func NewExploreService(db *gorm.DB, index CourseIndex, c *cache.RedisCache) *ExploreService {
	return &ExploreService{db: db, index: index, cache: c}
}

const exploreCacheTTL = 2 * time.Minute

// Explore returns published courses with their annotations, optionally
// filtered by category
func (s *ExploreService) Explore(ctx context.Context, category model.CourseCategory, limit, offset int) ([]CourseSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("explore:%s:%d:%d", category, limit, offset)
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		return cached, nil
	}

	query := s.annotated(ctx).
		Where("courses.status = ?", model.CourseStatusPublished)
	if category != "" {
		query = query.Where("courses.category = ?", category)
	}

	var summaries []CourseSummary
	err := query.Order("courses.created_at DESC").Limit(limit).Offset(offset).Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("exploring courses: %w", err)
	}

	s.toCache(ctx, cacheKey, summaries)
	return summaries, nil
}

// Search runs the index and hydrates the ranked ids into annotated
// summaries, preserving the index order. An empty query or no matches
// yields an empty list.
func (s *ExploreService) Search(ctx context.Context, query string, limit int) ([]CourseSummary, error) {
	ids, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []CourseSummary{}, nil
	}

	var summaries []CourseSummary
	err = s.annotated(ctx).
		Where("courses.id IN ?", ids).
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("hydrating search results: %w", err)
	}

	byID := make(map[uint]CourseSummary, len(summaries))
	for _, summary := range summaries {
		byID[summary.ID] = summary
	}
	ordered := make([]CourseSummary, 0, len(ids))
	for _, id := range ids {
		if summary, ok := byID[id]; ok {
			ordered = append(ordered, summary)
		}
	}
	return ordered, nil
}

// annotated builds the base course query with rating and enrollment
// aggregates joined in
func (s *ExploreService) annotated(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Course{}).
		Select("courses.*, " +
			"COALESCE(rating_agg.avg_rating, 0) AS avg_rating, " +
			"COALESCE(enrollment_agg.enrollment_count, 0) AS enrollment_count").
		Joins("LEFT JOIN (SELECT course_id, AVG(rating) AS avg_rating FROM ratings GROUP BY course_id) rating_agg " +
			"ON rating_agg.course_id = courses.id").
		Joins("LEFT JOIN (SELECT course_id, COUNT(*) AS enrollment_count FROM enrollments " +
			"WHERE status <> 'blocked' GROUP BY course_id) enrollment_agg " +
			"ON enrollment_agg.course_id = courses.id")
}

func (s *ExploreService) fromCache(ctx context.Context, key string) ([]CourseSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil, false
	}
	var summaries []CourseSummary
	if err := json.Unmarshal([]byte(raw), &summaries); err != nil {
		return nil, false
	}
	return summaries, true
}

func (s *ExploreService) toCache(ctx context.Context, key string, summaries []CourseSummary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summaries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), exploreCacheTTL); err != nil {
		log.Printf("explore cache write failed: %v", err)
	}
}
