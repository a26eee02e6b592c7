package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"

	"signage-ads/internal/core/domain"
)

// PositionSource pushes device positions to out until ctx ends.
type PositionSource interface {
	Run(ctx context.Context, out chan<- domain.Position) error
}

// SerialGPS reads NMEA sentences from a receiver on a serial port.
type SerialGPS struct {
	port   string
	baud   int
	logger *slog.Logger
	now    func() time.Time
}

func NewSerialGPS(port string, baud int, logger *slog.Logger) *SerialGPS {
	return &SerialGPS{port: port, baud: baud, logger: logger.With(slog.String("component", "gps")), now: time.Now}
}

func (g *SerialGPS) Run(ctx context.Context, out chan<- domain.Position) error {
	rd, err := serial.OpenPort(&serial.Config{Name: g.port, Baud: g.baud, ReadTimeout: time.Second})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", g.port, err)
	}
	// closing the port unblocks the scanner
	stop := context.AfterFunc(ctx, func() { rd.Close() })
	defer stop()

	g.logger.Info("polling GPS", slog.String("port", g.port))
	err = g.read(ctx, rd, out)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (g *SerialGPS) read(ctx context.Context, r io.Reader, out chan<- domain.Position) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p, ok := parseFix(sc.Text())
		if !ok {
			continue
		}
		p.Timestamp = g.now()
		select {
		case out <- p:
		case <-ctx.Done():
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read serial port %s: %w", g.port, err)
	}
	return nil
}

// parseFix extracts a position from a GGA or RMC sentence that carries a
// valid fix. Partial lines, bad checksums and other sentence types are
// skipped.
func parseFix(line string) (domain.Position, bool) {
	if len(line) == 0 || line[0] != '$' {
		return domain.Position{}, false
	}
	s, err := nmea.Parse(line)
	if err != nil {
		return domain.Position{}, false
	}
	switch m := s.(type) {
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return domain.Position{}, false
		}
		return domain.Position{Latitude: m.Latitude, Longitude: m.Longitude}, true
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return domain.Position{}, false
		}
		return domain.Position{Latitude: m.Latitude, Longitude: m.Longitude}, true
	}
	return domain.Position{}, false
}

// StaticPosition reports one fixed position, for kiosks that do not move.
type StaticPosition struct {
	Latitude  float64
	Longitude float64
}

func (s StaticPosition) Run(ctx context.Context, out chan<- domain.Position) error {
	select {
	case out <- domain.Position{Latitude: s.Latitude, Longitude: s.Longitude, Timestamp: time.Now()}:
	case <-ctx.Done():
		return nil
	}
	<-ctx.Done()
	return nil
}
