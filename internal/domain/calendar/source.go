package calendar

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads holidays from the database. It does no caching itself; wrap it
// in a CachedSource so sweeps and request validation do not hammer the table.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) HolidaysFor(ctx context.Context, jurisdiction string, year int) (map[string]struct{}, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT date
    FROM holidays
    WHERE jurisdiction = $1 AND date >= $2 AND date < $3
  `, jurisdiction,
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		out[date.Format(dayFormat)] = struct{}{}
	}
	return out, rows.Err()
}

type cacheEntry struct {
	holidays  map[string]struct{}
	fetchedAt time.Time
}

// CachedSource memoizes per jurisdiction+year lookups and refreshes an entry
// at most once per TTL.
type CachedSource struct {
	source HolidaySource
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachedSource(source HolidaySource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedSource) HolidaysFor(ctx context.Context, jurisdiction string, year int) (map[string]struct{}, error) {
	key := jurisdiction + "/" + strconv.Itoa(year)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.holidays, nil
	}

	holidays, err := c.source.HolidaysFor(ctx, jurisdiction, year)
	if err != nil {
		// Serve stale data over failing the caller when we have any.
		if ok {
			return entry.holidays, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{holidays: holidays, fetchedAt: time.Now()}
	c.mu.Unlock()
	return holidays, nil
}
