// internal/simulator/server.go
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"healthkit-link/internal/model"
	"healthkit-link/internal/telemetry"
)

// Config holds simulator settings
type Config struct {
	ListenAddr   string
	Interval     time.Duration
	CorruptEvery int // 0 disables corrupt frames
	Seed         uint64
}

// Server emulates a health kit behind a TCP bridge. Every accepted
// connection gets its own stream of frames.
type Server struct {
	config   Config
	logger   *zap.Logger
	listener net.Listener

	mutex   sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
	clients int64
}

// NewServer creates a simulator server
func NewServer(config Config, logger *zap.Logger) *Server {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &Server{
		config: config,
		logger: logger.With(zap.String("component", "kitsim")),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen binds the listener; Addr is valid afterwards
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	s.logger.Info("Simulator listening", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() {
		s.listener.Close()
		s.closeConns()
	})
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Warn("Failed to accept connection", zap.Error(err))
			continue
		}

		s.track(conn)
		s.wg.Add(1)
		go s.stream(ctx, conn)
	}
}

func (s *Server) track(conn net.Conn) {
	s.mutex.Lock()
	s.conns[conn] = struct{}{}
	s.clients++
	s.mutex.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mutex.Lock()
	delete(s.conns, conn)
	s.mutex.Unlock()
}

func (s *Server) closeConns() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// stream writes frames to one client until it goes away
func (s *Server) stream(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	s.mutex.Lock()
	gen := NewGenerator(s.config.Seed+uint64(s.clients), s.config.CorruptEvery)
	s.mutex.Unlock()

	logger := s.logger.With(zap.String("remote_addr", conn.RemoteAddr().String()))
	logger.Info("Client connected")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := gen.Next()
			if _, err := conn.Write([]byte(frame + "\r\n")); err != nil {
				logger.Info("Client disconnected", zap.Error(err))
				return
			}
			logger.Debug("Frame sent", zap.String("frame", frame))
		}
	}
}

// Generator produces kit frames with jittered values
type Generator struct {
	rand         *rand.Rand
	corruptEvery int
	count        int
}

// NewGenerator creates a generator. Every corruptEvery-th frame is
// malformed; 0 disables that.
func NewGenerator(seed uint64, corruptEvery int) *Generator {
	return &Generator{
		rand:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		corruptEvery: corruptEvery,
	}
}

// Next returns the next frame in wire format
func (g *Generator) Next() string {
	g.count++
	reading := g.Reading()
	frame := telemetry.Encode(reading)

	if g.corruptEvery > 0 && g.count%g.corruptEvery == 0 {
		return g.corrupt(frame, reading)
	}
	return frame
}

// Reading returns plausible vitals
func (g *Generator) Reading() model.Reading {
	heartbeat := 60 + g.rand.IntN(41)
	temperature := 36.0 + g.rand.Float64()*1.5
	weight := 50.0 + g.rand.Float64()*40.0

	return model.Reading{
		Heartbeat:   strconv.Itoa(heartbeat),
		Temperature: strconv.FormatFloat(temperature, 'f', 1, 64),
		Weight:      strconv.FormatFloat(weight, 'f', 1, 64),
	}
}

// corrupt alternates between a frame without start marker and one
// missing a field; both still end with the end marker
func (g *Generator) corrupt(frame string, reading model.Reading) string {
	if (g.count/g.corruptEvery)%2 == 1 {
		return frame[len(telemetry.StartMarker):]
	}
	return telemetry.StartMarker + reading.Heartbeat + telemetry.FieldSeparator + reading.Temperature + telemetry.EndMarker
}
