// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a local catalog of files uploaded to the backend.
//
// The catalog only records upload metadata so the user can re-attach a file
// by its server path without uploading it again. Conversation content is
// never persisted here.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/zhangdahai112/LocalManus/internal/manus"
)

// schema holds one row per successful upload.
const schema = `
CREATE TABLE IF NOT EXISTS uploads (
	id                INTEGER PRIMARY KEY,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	file_path         TEXT NOT NULL UNIQUE,
	uploaded_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at DESC);
`

// =============================================================================
// UPLOAD STORE
// =============================================================================

// UploadRecord is one catalog entry.
type UploadRecord struct {
	File       manus.UploadedFile
	UploadedAt time.Time
}

// UploadStore is a SQLite-backed upload catalog.
type UploadStore struct {
	db *sql.DB
}

// OpenUploadStore opens (and creates if needed) the catalog at path.
func OpenUploadStore(path string) (*UploadStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &UploadStore{db: db}, nil
}

// Record stores one upload result. Re-uploading the same server path
// refreshes the existing row instead of duplicating it.
func (s *UploadStore) Record(file manus.UploadedFile) error {
	_, err := s.db.Exec(`
		INSERT INTO uploads (filename, original_filename, file_path)
		VALUES (?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			filename = excluded.filename,
			original_filename = excluded.original_filename,
			uploaded_at = CURRENT_TIMESTAMP`,
		file.Filename, file.OriginalFilename, file.FilePath)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

// Recent returns up to limit catalog entries, newest first.
func (s *UploadStore) Recent(limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, filename, original_filename, file_path, uploaded_at
		FROM uploads
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		if err := rows.Scan(
			&rec.File.ID,
			&rec.File.Filename,
			&rec.File.OriginalFilename,
			&rec.File.FilePath,
			&rec.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindByName returns the newest catalog entry whose original filename
// matches, or nil when there is none.
func (s *UploadStore) FindByName(name string) (*UploadRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, filename, original_filename, file_path, uploaded_at
		FROM uploads
		WHERE original_filename = ?
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1`, name)

	var rec UploadRecord
	err := row.Scan(
		&rec.File.ID,
		&rec.File.Filename,
		&rec.File.OriginalFilename,
		&rec.File.FilePath,
		&rec.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload: %w", err)
	}
	return &rec, nil
}

// Close releases the underlying database.
func (s *UploadStore) Close() error {
	return s.db.Close()
}
