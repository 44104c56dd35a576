package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("entity not found")

const (
	incrementSongPlays  = `UPDATE song_counters SET plays = plays + 1 WHERE song_id = $1`
	incrementSongLikes  = `UPDATE song_counters SET likes = likes + 1 WHERE song_id = $1`
	incrementSongShares = `UPDATE song_counters SET shares = shares + 1 WHERE song_id = $1`

	incrementAlbumPlays  = `UPDATE album_counters SET plays = plays + 1 WHERE album_id = $1`
	incrementAlbumLikes  = `UPDATE album_counters SET likes = likes + 1 WHERE album_id = $1`
	incrementAlbumShares = `UPDATE album_counters SET shares = shares + 1 WHERE album_id = $1`
)

// IncrementSongCounter atomically bumps one counter column for a song.
// Returns false when no counter row exists, which means the song was never
// created in the catalog and the event should be skipped.
func (q *Queries) IncrementSongCounter(ctx context.Context, songID string, field string) (bool, error) {
	var query string
	switch field {
	case "plays":
		query = incrementSongPlays
	case "likes":
		query = incrementSongLikes
	case "shares":
		query = incrementSongShares
	default:
		return false, fmt.Errorf("unknown song counter field %q", field)
	}
	tag, err := q.db.Exec(ctx, query, songID)
	if err != nil {
		return false, fmt.Errorf("failed to increment song %s: %w", field, err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementAlbumCounter atomically bumps one counter column for an album.
func (q *Queries) IncrementAlbumCounter(ctx context.Context, albumID string, field string) (bool, error) {
	var query string
	switch field {
	case "plays":
		query = incrementAlbumPlays
	case "likes":
		query = incrementAlbumLikes
	case "shares":
		query = incrementAlbumShares
	default:
		return false, fmt.Errorf("unknown album counter field %q", field)
	}
	tag, err := q.db.Exec(ctx, query, albumID)
	if err != nil {
		return false, fmt.Errorf("failed to increment album %s: %w", field, err)
	}
	return tag.RowsAffected() > 0, nil
}

const getSongCounter = `
SELECT s.id, s.artist_id, c.plays, c.likes, c.shares
FROM song_counters c JOIN songs s ON s.id = c.song_id
WHERE c.song_id = $1
`

func (q *Queries) GetSongCounter(ctx context.Context, songID string) (SongCounter, error) {
	var c SongCounter
	err := q.db.QueryRow(ctx, getSongCounter, songID).
		Scan(&c.SongID, &c.ArtistID, &c.Plays, &c.Likes, &c.Shares)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

const getAlbumCounter = `
SELECT a.id, a.artist_id, c.plays, c.likes, c.shares
FROM album_counters c JOIN albums a ON a.id = c.album_id
WHERE c.album_id = $1
`

func (q *Queries) GetAlbumCounter(ctx context.Context, albumID string) (AlbumCounter, error) {
	var c AlbumCounter
	err := q.db.QueryRow(ctx, getAlbumCounter, albumID).
		Scan(&c.AlbumID, &c.ArtistID, &c.Plays, &c.Likes, &c.Shares)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

const songArtistID = `SELECT artist_id FROM songs WHERE id = $1`

// SongArtistID resolves the owning artist of a song.
func (q *Queries) SongArtistID(ctx context.Context, songID string) (string, error) {
	var artistID string
	err := q.db.QueryRow(ctx, songArtistID, songID).Scan(&artistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return artistID, err
}

const albumArtistID = `SELECT artist_id FROM albums WHERE id = $1`

// AlbumArtistID resolves the owning artist of an album.
func (q *Queries) AlbumArtistID(ctx context.Context, albumID string) (string, error) {
	var artistID string
	err := q.db.QueryRow(ctx, albumArtistID, albumID).Scan(&artistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return artistID, err
}
