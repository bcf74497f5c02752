/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ranking

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Seednode/partyquiz/games/quiz"
)

const keyPrefix = "partyquiz"

// Redis keeps running totals in sorted sets, one per board, overall and
// per grade.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// DialRedis connects and pings, so a bad address fails at startup.
func DialRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}

	return NewRedis(client), nil
}

func boardKey(board string, grade int) string {
	if grade > 0 {
		return fmt.Sprintf("%s:lb:%s:grade:%d", keyPrefix, board, grade)
	}

	return fmt.Sprintf("%s:lb:%s", keyPrefix, board)
}

func namesKey() string {
	return keyPrefix + ":names"
}

func (r *Redis) RecordStandings(ctx context.Context, s quiz.Standings) error {
	pipe := r.client.TxPipeline()

	for _, res := range s.Results {
		g := grade(s, res)

		for board, total := range map[string]int{BoardScore: res.Score, BoardReward: res.Reward} {
			pipe.ZIncrBy(ctx, boardKey(board, 0), float64(total), res.PlayerID)
			if g > 0 {
				pipe.ZIncrBy(ctx, boardKey(board, g), float64(total), res.PlayerID)
			}
		}

		pipe.HSet(ctx, namesKey(), res.PlayerID, res.Name)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record standings for %s: %w", s.Code, err)
	}

	return nil
}

func (r *Redis) Top(ctx context.Context, q Query) ([]Entry, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	results, err := r.client.ZRevRangeWithScores(ctx, boardKey(q.Board, q.Grade), 0, int64(q.Limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(results))
	ids := make([]string, len(results))
	for i, z := range results {
		id, _ := z.Member.(string)
		ids[i] = id
		entries[i] = Entry{
			Rank:     i + 1,
			PlayerID: id,
			Total:    int64(z.Score),
		}
	}

	if len(ids) == 0 {
		return entries, nil
	}

	names, err := r.client.HMGet(ctx, namesKey(), ids...).Result()
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		if s, ok := name.(string); ok {
			entries[i].Name = s
		}
	}

	return entries, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
