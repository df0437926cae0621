package geo

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/penshort/linkpulse/internal/model"
)

var errNoRecord = errors.New("address not in database")

// cityReader is the part of *geoip2.Reader used here.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

func openCityDB(path string) (cityReader, error) {
	if path == "" {
		return nil, errors.New("geoip database path is required for the geoip_db fallback")
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return db, nil
}

func lookupCity(db cityReader, ip string) (model.Location, error) {
	if db == nil {
		return model.Location{}, errors.New("geoip database not open")
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return model.Location{}, fmt.Errorf("invalid ip %q", ip)
	}

	rec, err := db.City(parsed)
	if err != nil {
		return model.Location{}, err
	}

	country := rec.Country.Names["en"]
	if country == "" {
		return model.Location{}, errNoRecord
	}
	return model.NewLocation(country, rec.City.Names["en"]), nil
}
