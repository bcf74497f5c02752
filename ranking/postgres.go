/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ranking

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Seednode/partyquiz/games/quiz"
)

// GameResult is one player's line in a finished room.
type GameResult struct {
	ID             uint      `gorm:"primaryKey"`
	RoomCode       string    `gorm:"size:16;index;not null"`
	PlayerID       string    `gorm:"size:128;index;not null"`
	Name           string    `gorm:"size:128"`
	Grade          int       `gorm:"index"`
	Score          int       `gorm:"not null"`
	CorrectAnswers int       `gorm:"not null"`
	TotalQuestions int       `gorm:"not null"`
	AvgTimeMs      int64     `gorm:"column:avg_time_ms"`
	Position       int       `gorm:"not null"`
	Reward         int       `gorm:"not null"`
	PlayedAt       time.Time `gorm:"index;not null"`
}

type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects and migrates the results table.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(&GameResult{}); err != nil {
		return nil, fmt.Errorf("migrate results: %w", err)
	}

	return NewPostgres(db), nil
}

func resultRows(s quiz.Standings) []GameResult {
	rows := make([]GameResult, 0, len(s.Results))

	for _, r := range s.Results {
		rows = append(rows, GameResult{
			RoomCode:       s.Code,
			PlayerID:       r.PlayerID,
			Name:           r.Name,
			Grade:          grade(s, r),
			Score:          r.Score,
			CorrectAnswers: r.CorrectAnswers,
			TotalQuestions: s.TotalRounds,
			AvgTimeMs:      r.AvgElapsed,
			Position:       r.Position,
			Reward:         r.Reward,
			PlayedAt:       s.FinishedAt,
		})
	}

	return rows
}

func (p *Postgres) RecordStandings(ctx context.Context, s quiz.Standings) error {
	rows := resultRows(s)
	if len(rows) == 0 {
		return nil
	}

	tx := p.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Create(&rows).Error; err != nil {
		tx.Rollback()

		return fmt.Errorf("record standings for %s: %w", s.Code, err)
	}

	return tx.Commit().Error
}

func (p *Postgres) Top(ctx context.Context, q Query) ([]Entry, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	column := "reward"
	if q.Board == BoardScore {
		column = "score"
	}

	var rows []struct {
		PlayerID string
		Name     string
		Total    int64
	}

	query := p.db.WithContext(ctx).
		Model(&GameResult{}).
		Select("player_id, MAX(name) AS name, SUM(" + column + ") AS total").
		Group("player_id").
		Order("total DESC").
		Limit(q.Limit)
	if q.Grade > 0 {
		query = query.Where("grade = ?", q.Grade)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Rank:     i + 1,
			PlayerID: r.PlayerID,
			Name:     r.Name,
			Total:    r.Total,
		}
	}

	return entries, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
