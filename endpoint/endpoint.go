// Package endpoint describes where a database lives and turns that
// description into a driver.Connector and a bun dialect.
package endpoint

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
)

// Driver names a supported database engine.
type Driver string

const (
	MySQL    Driver = "mysql"
	Postgres Driver = "postgres"
)

// LocalTimezone keeps the server's session timezone untouched.
const LocalTimezone = "Local"

// ErrInvalidEndpoint is returned by Validate.
var ErrInvalidEndpoint = errors.New("endpoint: invalid")

// Endpoint is an immutable connection target.
type Endpoint struct {
	Driver   Driver
	Host     string
	Port     int
	Username string
	Password string
	Database string

	Timezone        string        // IANA zone for session timestamps (default: Local)
	KeepAlive       bool          // TCP keepalive; always on for MySQL
	KeepAlivePeriod time.Duration // 0 uses the OS default
	TLS             bool

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Params map[string]string // Extra session parameters
}

// Default returns the endpoint of the game service database.
func Default() Endpoint {
	return Endpoint{
		Driver:       MySQL,
		Host:         "localhost",
		Port:         62222,
		Username:     "pp",
		Password:     "ppw",
		Database:     "ngp_web",
		Timezone:     LocalTimezone,
		KeepAlive:    true,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String returns a URL form of the endpoint with the password redacted.
func (e Endpoint) String() string {
	u := url.URL{
		Scheme: string(e.Driver),
		Host:   e.Addr(),
		Path:   "/" + e.Database,
	}
	if e.Password != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	} else if e.Username != "" {
		u.User = url.User(e.Username)
	}
	return u.Redacted()
}

// Validate checks that the endpoint can be dialed.
func (e Endpoint) Validate() error {
	switch {
	case e.Driver != MySQL && e.Driver != Postgres:
		return fmt.Errorf("%w: unsupported driver %q", ErrInvalidEndpoint, e.Driver)
	case e.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidEndpoint)
	case e.Port < 1 || e.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, e.Port)
	case e.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidEndpoint)
	case e.Database == "":
		return fmt.Errorf("%w: database is required", ErrInvalidEndpoint)
	case e.DialTimeout < 0 || e.ReadTimeout < 0 || e.WriteTimeout < 0 || e.KeepAlivePeriod < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidEndpoint)
	}
	if _, err := e.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return nil
}

// Location resolves Timezone. Empty and Local map to time.Local.
func (e Endpoint) Location() (*time.Location, error) {
	if e.Timezone == "" || e.Timezone == LocalTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

// Connector builds a driver connector for the endpoint.
func (e Endpoint) Connector() (driver.Connector, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	switch e.Driver {
	case Postgres:
		return pgdriver.NewConnector(e.PostgresOptions()...), nil
	default:
		cfg, err := e.MySQLConfig()
		if err != nil {
			return nil, err
		}
		return mysql.NewConnector(cfg)
	}
}

// Dialect returns the bun dialect matching Driver.
func (e Endpoint) Dialect() schema.Dialect {
	if e.Driver == Postgres {
		return pgdialect.New()
	}
	return mysqldialect.New()
}

// MySQLConfig maps the endpoint onto a go-sql-driver config. Placeholders
// are interpolated client side so statements run without a prepare round
// trip. Updates report matched rows, not changed rows, so rewriting a row
// with its current values still counts as a hit.
func (e Endpoint) MySQLConfig() (*mysql.Config, error) {
	loc, err := e.Location()
	if err != nil {
		return nil, err
	}

	cfg := mysql.NewConfig()
	cfg.User = e.Username
	cfg.Passwd = e.Password
	cfg.Net = "tcp"
	cfg.Addr = e.Addr()
	cfg.DBName = e.Database
	cfg.Loc = loc
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.ClientFoundRows = true
	cfg.Timeout = e.DialTimeout
	cfg.ReadTimeout = e.ReadTimeout
	cfg.WriteTimeout = e.WriteTimeout
	if e.TLS {
		cfg.TLSConfig = "preferred"
	}
	if len(e.Params) > 0 {
		cfg.Params = maps.Clone(e.Params)
	}

	if e.KeepAlivePeriod > 0 {
		cfg.Net = registerMySQLKeepAlive(e.DialTimeout, e.KeepAlivePeriod)
	}
	return cfg, nil
}

// PostgresOptions maps the endpoint onto pgdriver options.
func (e Endpoint) PostgresOptions() []pgdriver.Option {
	opts := []pgdriver.Option{
		pgdriver.WithAddr(e.Addr()),
		pgdriver.WithUser(e.Username),
		pgdriver.WithPassword(e.Password),
		pgdriver.WithDatabase(e.Database),
		pgdriver.WithApplicationName("gamekit"),
		pgdriver.WithInsecure(!e.TLS),
	}
	if e.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(e.DialTimeout))
	}
	if e.ReadTimeout > 0 {
		opts = append(opts, pgdriver.WithReadTimeout(e.ReadTimeout))
	}
	if e.WriteTimeout > 0 {
		opts = append(opts, pgdriver.WithWriteTimeout(e.WriteTimeout))
	}

	params := make(map[string]any, len(e.Params)+1)
	for k, v := range e.Params {
		params[k] = v
	}
	if e.Timezone != "" && e.Timezone != LocalTimezone {
		params["TimeZone"] = e.Timezone
	}
	if len(params) > 0 {
		opts = append(opts, pgdriver.WithConnParams(params))
	}

	opts = append(opts, withKeepAlive(e.KeepAlive, e.KeepAlivePeriod))
	return opts
}

// withKeepAlive replaces the pgdriver dialer. A negative net.Dialer
// KeepAlive disables TCP keep-alive packets.
func withKeepAlive(enabled bool, period time.Duration) pgdriver.Option {
	keepAlive := period
	if !enabled {
		keepAlive = -1
	}
	return func(conf *pgdriver.Config) {
		conf.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := &net.Dialer{Timeout: conf.DialTimeout, KeepAlive: keepAlive}
			return d.DialContext(ctx, network, addr)
		}
	}
}

var mysqlDialers sync.Map

// registerMySQLKeepAlive registers a named dial function with the mysql
// driver, once per setting, and returns the network name to use.
func registerMySQLKeepAlive(timeout, period time.Duration) string {
	name := fmt.Sprintf("tcp+keepalive-%s-%s", timeout, period)
	if _, loaded := mysqlDialers.LoadOrStore(name, struct{}{}); !loaded {
		mysql.RegisterDialContext(name, func(ctx context.Context, addr string) (net.Conn, error) {
			d := &net.Dialer{Timeout: timeout, KeepAlive: period}
			return d.DialContext(ctx, "tcp", addr)
		})
	}
	return name
}
