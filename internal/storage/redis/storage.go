package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) GetAccount(ctx context.Context, pseudonym string) (*model.AccountStats, error) {
	fields, err := s.client.HGetAll(ctx, accountKey(pseudonym)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.ErrAccountNotFound
	}

	acc := &model.AccountStats{
		Pseudonym:           pseudonym,
		Money:               parseInt(fields[fieldMoney]),
		GamesPlayed:         parseInt(fields[fieldGamesPlayed]),
		GamesWon:            parseInt(fields[fieldGamesWon]),
		AvgQuestionsCorrect: parseFloat(fields[fieldAvgQuestionsCorrect]),
		AvgTimePerGame:      parseFloat(fields[fieldAvgTimePerGame]),
		MatchHistory:        []model.MatchHistoryEntry{},
	}

	entries, err := s.client.LRange(ctx, accountHistoryKey(pseudonym), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, data := range entries {
		var entry model.MatchHistoryEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, err
		}
		acc.MatchHistory = append(acc.MatchHistory, entry)
	}
	return acc, nil
}

// incrementField bumps an integer counter and registers the account
func (s *Storage) incrementField(ctx context.Context, pseudonym, field string, by int64) error {
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, accountKey(pseudonym), field, by)
	pipe.SAdd(ctx, accountsIndexKey(), pseudonym)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) AddMoney(ctx context.Context, pseudonym string, amount int) error {
	return s.incrementField(ctx, pseudonym, fieldMoney, int64(amount))
}

func (s *Storage) IncrementGamesPlayed(ctx context.Context, pseudonym string) error {
	return s.incrementField(ctx, pseudonym, fieldGamesPlayed, 1)
}

func (s *Storage) IncrementGamesWon(ctx context.Context, pseudonym string) error {
	return s.incrementField(ctx, pseudonym, fieldGamesWon, 1)
}

// updateAverage folds sample into a running average field. The read and
// write are retried under WATCH so concurrent updates are not lost.
func (s *Storage) updateAverage(ctx context.Context, pseudonym, field string, sample float64) error {
	key := accountKey(pseudonym)

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, key, field, fieldGamesPlayed).Result()
		if err != nil {
			return err
		}
		avg := storage.RunningAverage(parseFloat(vals[0]), parseInt(vals[1]), sample)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, strconv.FormatFloat(avg, 'f', -1, 64))
			pipe.SAdd(ctx, accountsIndexKey(), pseudonym)
			return nil
		})
		return err
	}

	for range max(s.cfg.TxRetries, 1) {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("update %s for %s: %w", field, pseudonym, redis.TxFailedErr)
}

func (s *Storage) UpdateAvgQuestionsCorrect(ctx context.Context, pseudonym string, correctAnswers int) error {
	return s.updateAverage(ctx, pseudonym, fieldAvgQuestionsCorrect, float64(correctAnswers))
}

func (s *Storage) UpdateAvgTimePerGame(ctx context.Context, pseudonym string, seconds float64) error {
	return s.updateAverage(ctx, pseudonym, fieldAvgTimePerGame, seconds)
}

func (s *Storage) AppendMatchHistory(ctx context.Context, pseudonym string, entry model.MatchHistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, accountHistoryKey(pseudonym), data)
	// Keep the counters hash present so the account is readable
	pipe.HIncrBy(ctx, accountKey(pseudonym), fieldMoney, 0)
	pipe.SAdd(ctx, accountsIndexKey(), pseudonym)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListBalances(ctx context.Context) ([]model.AccountBalance, error) {
	pseudonyms, err := s.client.SMembers(ctx, accountsIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(pseudonyms)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(pseudonyms))
	for i, p := range pseudonyms {
		cmds[i] = pipe.HGet(ctx, accountKey(p), fieldMoney)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	balances := make([]model.AccountBalance, 0, len(pseudonyms))
	for i, p := range pseudonyms {
		money, err := cmds[i].Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		balances = append(balances, model.AccountBalance{ID: p, Money: parseInt(money)})
	}
	return balances, nil
}

// Saved match history operations

func (s *Storage) SaveMatchRecord(ctx context.Context, record *model.MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	key := matchHistoryKey()
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.cfg.MatchHistoryTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.MatchHistoryTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListMatchRecords(ctx context.Context) ([]model.MatchRecord, error) {
	entries, err := s.client.LRange(ctx, matchHistoryKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]model.MatchRecord, 0, len(entries))
	for _, data := range entries {
		var record model.MatchRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Storage) ClearMatchRecords(ctx context.Context) error {
	return s.client.Del(ctx, matchHistoryKey()).Err()
}

// Game evaluation operations

func (s *Storage) RecordGameEvaluation(ctx context.Context, eval model.GameEvaluation) error {
	pipe := s.client.TxPipeline()
	for dim, key := range eval.Keys() {
		pipe.HIncrBy(ctx, gameRatingsKey(eval.GameID, dim), string(key), 1)
	}
	pipe.SAdd(ctx, ratedGamesIndexKey(), eval.GameID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGameRatings(ctx context.Context, gameID string) (*model.GameRatings, error) {
	rated, err := s.client.SIsMember(ctx, ratedGamesIndexKey(), gameID).Result()
	if err != nil {
		return nil, err
	}
	if !rated {
		return nil, model.ErrGameNotFound
	}

	pipe := s.client.Pipeline()
	cmds := make(map[model.RatingDimension]*redis.MapStringStringCmd, len(model.RatingDimensions))
	for _, dim := range model.RatingDimensions {
		cmds[dim] = pipe.HGetAll(ctx, gameRatingsKey(gameID, dim))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	ratings := model.NewGameRatings()
	for dim, cmd := range cmds {
		for key, count := range cmd.Val() {
			ratings.Dimension(dim)[key] = parseInt(count)
		}
	}
	return ratings, nil
}

// parseInt reads a hash value, treating missing or malformed values as zero
func parseInt(v any) int {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(v any) float64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0
	}
	return f
}
