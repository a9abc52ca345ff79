package bot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"feltworks.io/live-table-go/internal/events"
	"feltworks.io/live-table-go/internal/logging"
)

// Session tracks one timed play session: the round counter, balance
// deltas, and the CSV round log.
type Session struct {
	ID       string
	Game     string
	Duration time.Duration

	mu              sync.Mutex
	startedAt       time.Time
	roundsPlayed    int
	startingBalance *float64
	currentBalance  *float64

	logDir      string
	logPath     string
	logFile     *os.File
	csvWriter   *csv.Writer
	statusEvery int

	logger *logging.Logger
	bus    events.EventBus
	clock  func() time.Time
}

// NewSession creates a session for a game. A non-positive duration means
// the session runs until stopped.
func NewSession(game string, duration time.Duration) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Game:        game,
		Duration:    duration,
		statusEvery: 10,
		logger:      logging.NewLogger("session"),
		clock:       time.Now,
	}
}

// WithRoundLog enables CSV round logging under dir
func (s *Session) WithRoundLog(dir string) *Session {
	s.logDir = dir
	return s
}

// WithEventBus publishes round events to the bus
func (s *Session) WithEventBus(bus events.EventBus) *Session {
	s.bus = bus
	return s
}

// WithStatusEvery sets how many rounds pass between console summaries
func (s *Session) WithStatusEvery(n int) *Session {
	if n > 0 {
		s.statusEvery = n
	}
	return s
}

// WithLogger sets the logger
func (s *Session) WithLogger(logger *logging.Logger) *Session {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Begin starts the session clock and opens the round log
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startedAt = s.clock()

	if s.logDir == "" {
		return nil
	}

	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		return fmt.Errorf("round log dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.csv", s.Game, s.startedAt.Format("20060102_150405"))
	s.logPath = filepath.Join(s.logDir, name)

	file, err := os.Create(s.logPath)
	if err != nil {
		return fmt.Errorf("round log: %w", err)
	}
	s.logFile = file
	s.csvWriter = csv.NewWriter(file)

	if err := s.csvWriter.Write([]string{"timestamp", "round", "balance", "notes"}); err != nil {
		file.Close()
		return fmt.Errorf("round log header: %w", err)
	}
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		file.Close()
		return fmt.Errorf("round log header: %w", err)
	}

	s.logger.Infof("Logging rounds to: %s", s.logPath)
	return nil
}

// Close flushes and closes the round log
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.csvWriter != nil {
		s.csvWriter.Flush()
	}
	if s.logFile != nil {
		err := s.logFile.Close()
		s.logFile = nil
		return err
	}
	return nil
}

// StartedAt returns when Begin was called
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Elapsed returns time since Begin
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return s.clock().Sub(s.startedAt)
}

// TimeRemaining returns the time left before expiry, never negative
func (s *Session) TimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Duration <= 0 {
		return time.Duration(1<<63 - 1)
	}
	remaining := s.Duration - s.elapsedLocked()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the session timer has run out. Sessions with
// no duration never expire.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Duration <= 0 || s.startedAt.IsZero() {
		return false
	}
	return s.elapsedLocked() >= s.Duration
}

// Rounds returns the number of rounds logged so far
func (s *Session) Rounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundsPlayed
}

// SetStartingBalance records the first observed balance. Later calls
// are ignored so mid-session reads do not move the baseline.
func (s *Session) SetStartingBalance(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startingBalance == nil {
		b := balance
		s.startingBalance = &b
		c := balance
		s.currentBalance = &c
	}
}

// Balances returns the starting and current balance, which are nil
// until the first successful balance read.
func (s *Session) Balances() (starting, current *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startingBalance, s.currentBalance
}

// LogRound records a completed round. balance is nil when the balance
// read failed for this round.
func (s *Session) LogRound(balance *float64, notes string) {
	s.mu.Lock()

	s.roundsPlayed++
	round := s.roundsPlayed
	if balance != nil {
		b := *balance
		s.currentBalance = &b
		if s.startingBalance == nil {
			sb := b
			s.startingBalance = &sb
		}
	}

	if s.csvWriter != nil {
		balanceField := ""
		if balance != nil {
			balanceField = strconv.FormatFloat(*balance, 'f', 2, 64)
		}
		record := []string{
			s.clock().Format(time.RFC3339),
			strconv.Itoa(round),
			balanceField,
			notes,
		}
		if err := s.csvWriter.Write(record); err == nil {
			s.csvWriter.Flush()
		}
		if err := s.csvWriter.Error(); err != nil {
			s.logger.Warnf("Round log write failed: %v", err)
		}
	}

	statusDue := s.statusEvery > 0 && round%s.statusEvery == 0
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.NewRoundLoggedEvent(s.Game, round, balance, notes))
	}

	if statusDue {
		s.LogStatus()
	}
}

// LogStatus prints a one-line progress summary
func (s *Session) LogStatus() {
	s.mu.Lock()
	elapsed := s.elapsedLocked()
	round := s.roundsPlayed
	starting, current := s.startingBalance, s.currentBalance
	s.mu.Unlock()

	status := fmt.Sprintf("[Round %d] Time: %.1f/%.0f min", round, elapsed.Minutes(), s.Duration.Minutes())
	if starting != nil && current != nil {
		pnl := *current - *starting
		sign := ""
		if pnl >= 0 {
			sign = "+"
		}
		status += fmt.Sprintf(" | Balance: $%.2f (%s$%.2f)", *current, sign, pnl)
	}

	s.logger.Info(status)
}

// LogSummary prints the end-of-session summary block
func (s *Session) LogSummary() {
	s.mu.Lock()
	elapsed := s.elapsedLocked()
	round := s.roundsPlayed
	starting, current := s.startingBalance, s.currentBalance
	logPath := s.logPath
	s.mu.Unlock()

	s.logger.Info("==================================================")
	s.logger.Infof("Session Complete: %s", s.Game)
	s.logger.Infof("Duration: %.1f minutes", elapsed.Minutes())
	s.logger.Infof("Rounds played: %d", round)

	if starting != nil && current != nil {
		pnl := *current - *starting
		sign := ""
		if pnl >= 0 {
			sign = "+"
		}
		s.logger.Infof("Starting balance: $%.2f", *starting)
		s.logger.Infof("Ending balance: $%.2f", *current)
		s.logger.Infof("P&L: %s$%.2f", sign, pnl)
	}

	if logPath != "" {
		s.logger.Infof("Log file: %s", logPath)
	}
	s.logger.Info("==================================================")
}

// LogPath returns the CSV path, empty until Begin with a log dir
func (s *Session) LogPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logPath
}
