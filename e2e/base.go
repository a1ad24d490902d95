package e2e

import (
	"context"
	"fmt"
	"getfile-lab/client"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseGetfileSuite struct {
	suite.Suite
	Config Config
	Host   string
	Port   int
}

// SetupSuite loads the environment and skips when no server is configured.
func (s *BaseGetfileSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("GETFILE_ADDR not set, skipping end-to-end suite")
	}
	host, port, err := net.SplitHostPort(s.Config.ServerAddr)
	s.Require().NoError(err)
	s.Host = host
	s.Port, err = strconv.Atoi(port)
	s.Require().NoError(err)
}

func (s *BaseGetfileSuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// WithEngine provides a client engine within a named test step.
func (s *BaseGetfileSuite) WithEngine(name string, fn func(ctx context.Context, engine *client.Engine)) {
	s.header(name)
	engine := client.NewEngine(logs.GetLoggerFromLevel(slog.LevelDebug), 0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(ctx, engine)
}

// WithConn provides a raw TCP connection for malformed requests.
func (s *BaseGetfileSuite) WithConn(name string, fn func(conn net.Conn)) {
	s.header(name)
	conn, err := net.DialTimeout("tcp", s.Config.ServerAddr, 5*time.Second)
	s.Require().NoError(err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	fn(conn)
}
