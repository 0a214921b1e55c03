// Package directory lists admin accounts, schools and teachers as a single, paginated listing.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

const (
	KindAdmin   = "admin"
	KindSchool  = "school"
	KindTeacher = "teacher"

	generationKey = "directory:generation"
	loadTimeout   = 30 * time.Second
)

type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	SchoolID  string    `json:"school_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Query struct {
	Kind   string `json:"kind" query:"kind" validate:"omitempty,oneof=admin school teacher"`
	Search string `json:"search" query:"search"`
}

func (q *Query) Clean() {
	q.Kind = core.CleanString(q.Kind, true /* lower */)
	q.Search = core.CleanString(q.Search, true /* lower */)
}

// Result is one page of the directory. Total counts every matching entry.
type Result struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

type (
	// Cache stores rendered pages. A missing key is not an error.
	Cache interface {
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
		Incr(ctx context.Context, key string) (int64, error)
	}

	UserLister interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]user.User, int, error)
	}

	SchoolLister interface {
		Query(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]school.School, int, error)
	}

	TeacherLister interface {
		Query(ctx context.Context, filter *teacher.QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]teacher.Teacher, int, error)
	}

	Service interface {
		List(ctx context.Context, q Query, page core.Pagination) (Result, error)
		// Invalidate drops every cached page.
		Invalidate(ctx context.Context)
	}

	service struct {
		users    UserLister
		schools  SchoolLister
		teachers TeacherLister
		cache    Cache
		ttl      time.Duration
		logger   core.Logger
		group    singleflight.Group
	}
)

var _ Service = (*service)(nil)

type Deps struct {
	Users    UserLister
	Schools  SchoolLister
	Teachers TeacherLister
	Cache    Cache
	Logger   core.Logger
}

func NewService(deps Deps, conf *core.Config) Service {
	return &service{
		users:    deps.Users,
		schools:  deps.Schools,
		teachers: deps.Teachers,
		cache:    deps.Cache,
		ttl:      conf.Redis.PageCacheTTL,
		logger:   deps.Logger,
	}
}

func (svc *service) generation(ctx context.Context) (int64, error) {
	val, ok, err := svc.cache.Get(ctx, generationKey)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(string(val), 10, 64)
}

func pageKey(gen int64, q Query, page core.Pagination) string {
	return fmt.Sprintf("directory:%d:%s:%s:%d:%d", gen, q.Kind, q.Search, page.Page, page.PageSize)
}

func (svc *service) List(ctx context.Context, q Query, page core.Pagination) (Result, error) {
	q.Clean()
	page = core.NewPagination(page.Page, page.PageSize)

	gen, err := svc.generation(ctx)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("directory: reading cache generation: %v", err), err)
	}
	key := pageKey(gen, q, page)

	if data, ok, err := svc.cache.Get(ctx, key); err != nil {
		svc.logger.Warn(fmt.Sprintf("directory: reading cached page: %v", err), err)
	} else if ok {
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			return res, nil
		}
	}

	// Concurrent misses on the same page share a single load. It runs detached from the request
	// that started it so that one client going away does not fail the others.
	ch := svc.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		res, err := svc.load(lctx, q, page)
		if err != nil {
			return Result{}, err
		}
		if data, err := json.Marshal(res); err == nil {
			if err := svc.cache.Set(lctx, key, data, svc.ttl); err != nil {
				svc.logger.Warn(fmt.Sprintf("directory: caching page: %v", err), err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (svc *service) Invalidate(ctx context.Context) {
	if _, err := svc.cache.Incr(ctx, generationKey); err != nil {
		svc.logger.Error(fmt.Sprintf("directory: invalidating cache: %v", err), err)
	}
}

// load fetches the three sources concurrently, then merges, filters, sorts and slices them.
func (svc *service) load(ctx context.Context, q Query, page core.Pagination) (Result, error) {
	var admins, schools, teachers []Entry
	g, gctx := errgroup.WithContext(ctx)

	if q.Kind == "" || q.Kind == KindAdmin {
		g.Go(func() error {
			users, _, err := svc.users.Query(gctx, &user.QueryFilter{Roles: []string{user.RoleAdmin}}, nil, nil)
			if err != nil {
				return errors.Wrap(err, "querying admins")
			}
			admins = make([]Entry, 0, len(users))
			for _, u := range users {
				admins = append(admins, Entry{
					ID: u.ID, Kind: KindAdmin, Name: u.Name, Email: u.Email, IsActive: u.IsActive, CreatedAt: u.CreatedAt,
				})
			}
			return nil
		})
	}
	if q.Kind == "" || q.Kind == KindSchool {
		g.Go(func() error {
			list, _, err := svc.schools.Query(gctx, nil, nil, nil)
			if err != nil {
				return errors.Wrap(err, "querying schools")
			}
			schools = make([]Entry, 0, len(list))
			for _, s := range list {
				schools = append(schools, Entry{
					ID: s.ID, Kind: KindSchool, Name: s.Name, Email: s.Email, IsActive: s.IsActive, CreatedAt: s.CreatedAt,
				})
			}
			return nil
		})
	}
	if q.Kind == "" || q.Kind == KindTeacher {
		g.Go(func() error {
			list, _, err := svc.teachers.Query(gctx, nil, nil, nil)
			if err != nil {
				return errors.Wrap(err, "querying teachers")
			}
			teachers = make([]Entry, 0, len(list))
			for _, t := range list {
				teachers = append(teachers, Entry{
					ID: t.ID, Kind: KindTeacher, Name: t.FullName(), Email: t.Email, SchoolID: t.SchoolID,
					IsActive: t.IsActive, CreatedAt: t.CreatedAt,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	all := make([]Entry, 0, len(admins)+len(schools)+len(teachers))
	for _, src := range [][]Entry{admins, schools, teachers} {
		for _, e := range src {
			if q.Search == "" || matches(e, q.Search) {
				all = append(all, e)
			}
		}
	}
	sortEntries(all)

	start, end := page.Bounds(len(all))
	entries := make([]Entry, end-start)
	copy(entries, all[start:end])
	return Result{Entries: entries, Total: len(all)}, nil
}

// matches expects a lower-cased search term.
func matches(e Entry, search string) bool {
	return strings.Contains(strings.ToLower(e.Name), search) || strings.Contains(strings.ToLower(e.Email), search)
}

// sortEntries orders by CreatedAt, newest first, then by ID.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
