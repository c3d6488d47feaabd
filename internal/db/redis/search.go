package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/storeway/catsync/internal/db"
)

// SearchList performs a paginated FT.SEARCH with optional SORTBY.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	query := q.Query
	if query == "" {
		query = "*"
	}

	args := []string{q.IndexName, query}

	if q.SortBy != "" {
		dir := "DESC"
		if q.SortAsc {
			dir = "ASC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}

	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit))

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseListResult(raw)
}

// SearchCount returns the number of documents matching query via LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	if query == "" {
		query = "*"
	}
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(index, query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse search count: %w", err)
	}
	return int(total), nil
}

// parseListResult parses the RESP2 FT.SEARCH reply:
// [total, key1, [f1, v1, ...], key2, [f2, v2, ...], ...].
func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	result := &db.SearchResult{Total: int(total)}

	i := 1
	for i < len(raw) {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, fmt.Errorf("parse document key: %w", err)
		}
		i++

		entry := db.SearchEntry{Key: key, Fields: map[string]string{}}

		if i < len(raw) {
			if fieldArr, aerr := raw[i].ToArray(); aerr == nil {
				for j := 0; j+1 < len(fieldArr); j += 2 {
					name, nerr := fieldArr[j].ToString()
					val, verr := fieldArr[j+1].ToString()
					if nerr == nil && verr == nil {
						entry.Fields[name] = val
					}
				}
				i++
			}
		}

		result.Entries = append(result.Entries, entry)
	}

	return result, nil
}
