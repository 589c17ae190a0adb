// Package storage persists discovered game servers in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/woozymasta/sonar/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// ErrNotFound is returned when a server is not stored.
var ErrNotFound = errors.New("server not found")

const serverColumns = `ip, port, country_code, name, map, folder, game, version, keywords,
	app_id, game_id, game_port, players, max_players, bots, server_type, environment,
	password, vac, count, first_seen, last_seen`

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath, sets connection pool parameters and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertServer inserts a server or refreshes the stored row keyed by IP and port.
// FirstSeen is kept from the first insert; Count is incremented on every update.
// A blank country code never overwrites a known one.
func (r *Repository) UpsertServer(s models.Server) error {
	query := `
	INSERT INTO servers (` + serverColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(ip, port) DO UPDATE SET
		count        = servers.count + 1,
		last_seen    = excluded.last_seen,
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END,
		name         = excluded.name,
		map          = excluded.map,
		folder       = excluded.folder,
		game         = excluded.game,
		version      = excluded.version,
		keywords     = excluded.keywords,
		app_id       = excluded.app_id,
		game_id      = excluded.game_id,
		game_port    = excluded.game_port,
		players      = excluded.players,
		max_players  = excluded.max_players,
		bots         = excluded.bots,
		server_type  = excluded.server_type,
		environment  = excluded.environment,
		password     = excluded.password,
		vac          = excluded.vac;
	`

	firstSeen := s.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = s.LastSeen
	}

	_, err := r.db.Exec(query,
		s.IP, s.Port, s.CountryCode, s.Name, s.Map, s.Folder, s.Game, s.Version, s.Keywords,
		s.AppID, s.GameID, s.GamePort, s.Players, s.MaxPlayers, s.Bots, s.ServerType, s.Environment,
		s.Password, s.VAC, firstSeen.UTC(), s.LastSeen.UTC(),
	)

	return err
}

// GetServers lists stored servers matching f, most recently seen first.
func (r *Repository) GetServers(f models.ServerFilter) ([]models.Server, error) {
	var (
		where []string
		args  []any
	)

	if f.Game != "" {
		where = append(where, "game = ?")
		args = append(args, f.Game)
	}
	if f.Map != "" {
		where = append(where, "map = ?")
		args = append(args, f.Map)
	}
	if f.Country != "" {
		where = append(where, "country_code = ?")
		args = append(args, strings.ToUpper(f.Country))
	}
	if f.AppID != 0 {
		where = append(where, "app_id = ?")
		args = append(args, f.AppID)
	}
	if f.NotEmpty {
		where = append(where, "players > 0")
	}
	if !f.SeenBefore.IsZero() {
		where = append(where, "last_seen < ?")
		args = append(args, f.SeenBefore.UTC())
	}

	query := "SELECT " + serverColumns + " FROM servers"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_seen DESC, ip, port"

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	servers := []models.Server{}
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

// GetServer returns the server stored for ip and port, or ErrNotFound.
func (r *Repository) GetServer(ip string, port int) (models.Server, error) {
	row := r.db.QueryRow("SELECT "+serverColumns+" FROM servers WHERE ip = ? AND port = ?", ip, port)

	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Server{}, ErrNotFound
	}

	return s, err
}

// DeleteServer removes one server. Deleting a missing row returns ErrNotFound.
func (r *Repository) DeleteServer(ip string, port int) error {
	res, err := r.db.Exec("DELETE FROM servers WHERE ip = ? AND port = ?", ip, port)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteStale removes servers last seen before the given time and reports how many were removed.
func (r *Repository) DeleteStale(before time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM servers WHERE last_seen < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountServers returns the number of stored servers.
func (r *Repository) CountServers() (int64, error) {
	var n int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM servers").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (models.Server, error) {
	var s models.Server
	err := row.Scan(
		&s.IP, &s.Port, &s.CountryCode, &s.Name, &s.Map, &s.Folder, &s.Game, &s.Version, &s.Keywords,
		&s.AppID, &s.GameID, &s.GamePort, &s.Players, &s.MaxPlayers, &s.Bots, &s.ServerType, &s.Environment,
		&s.Password, &s.VAC, &s.Count, &s.FirstSeen, &s.LastSeen,
	)
	return s, err
}
