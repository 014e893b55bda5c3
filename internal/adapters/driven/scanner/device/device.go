// Package device drives a duplex sheet-fed scanner through a
// scanimage-style command line tool, one subprocess per scanning
// session. The child prints one scanned image path per line on
// stdout; paths pair two at a time into front/back. A two-newline
// continue token on stdin releases each subsequent sheet, and closing
// stdin ends the session.
package device

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/lineproto"
	"github.com/custodia-labs/batchscan/internal/logger"
)

// Ensure interface compliance.
var (
	_ driven.BatchScanner = (*Scanner)(nil)
	_ driven.ScanSession  = (*Session)(nil)
)

const (
	// continueToken releases the next sheet from the feeder.
	continueToken = "\n\n"

	// imprinterMissingSignature is the diagnostic the device prints
	// when an imprint id was requested but no imprinter unit is
	// attached. It may arrive split across stderr chunks.
	imprinterMissingSignature = "imprinter not attached"

	scanResolutionDPI = 200
)

// Scanner starts scanning sessions against a physical duplex scanner.
type Scanner struct {
	binary    string
	device    string
	imagesDir string
}

// NewScanner creates a driver for the named device using the given
// scanimage-style binary. Scanned images are written under imagesDir.
func NewScanner(binary, device, imagesDir string) *Scanner {
	return &Scanner{binary: binary, device: device, imagesDir: imagesDir}
}

// ScanSheets spawns one subprocess and returns a session streaming its
// sheets. The session outlives the caller's context: the subprocess
// runs until EndBatch closes its stdin or it exits on its own.
func (s *Scanner) ScanSheets(_ context.Context, opts driven.ScanOptions) (driven.ScanSession, error) {
	args := buildArgs(s.device, s.imagesDir, opts)
	logger.Debug("Starting %s %s", s.binary, strings.Join(args, " "))

	cmd := exec.Command(s.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.binary, err)
	}

	session := &Session{
		cmd:           cmd,
		stdin:         stdin,
		imprintPrefix: opts.ImprintIDPrefix,
		pairs:         make(chan scannedPair, 4),
		done:          make(chan struct{}),
	}
	go session.run(stdout, stderr)
	return session, nil
}

// buildArgs assembles the subprocess command line from the session
// options.
func buildArgs(device, imagesDir string, opts driven.ScanOptions) []string {
	width, height := opts.PaperSize.Dimensions()
	args := []string{
		"--device-name", device,
		"--source", "ADF Duplex",
		"--format", "png",
		"--resolution", strconv.Itoa(scanResolutionDPI),
		"--mode", modeArg(opts.Mode),
		"-x", formatMM(width),
		"-y", formatMM(height),
		"--batch=" + filepath.Join(imagesDir, "scan-%04d.png"),
		"--batch-print",
		"--batch-prompt",
	}
	if opts.ImprintIDPrefix != "" {
		args = append(args,
			"--endorser", "yes",
			"--endorser-string", opts.ImprintIDPrefix+"%05ud",
		)
	}
	return args
}

func modeArg(mode driven.ScanMode) string {
	switch mode {
	case driven.ScanModeColor:
		return "Color"
	case driven.ScanModeLineart:
		return "Lineart"
	default:
		return "Gray"
	}
}

func formatMM(mm float64) string {
	// One decimal is all the inch-derived sizes need and all the
	// device accepts.
	return strconv.FormatFloat(mm, 'f', 1, 64) + "mm"
}

// scannedPair is one front/back path pair or a stream failure.
type scannedPair struct {
	front string
	back  string
	err   error
}

// Session is one live scanning subprocess.
type Session struct {
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	imprintPrefix string

	pairs chan scannedPair
	done  chan struct{}

	endOnce sync.Once

	mu               sync.Mutex
	requested        int
	sheetSeq         int
	imprinterMissing bool
}

// run pumps the subprocess's streams until it exits, then closes the
// pair channel.
func (s *Session) run(stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.readPaths(stdout)
	}()
	go func() {
		defer wg.Done()
		s.readDiagnostics(stderr)
	}()

	wg.Wait()
	err := s.cmd.Wait()
	if err != nil {
		s.pairs <- scannedPair{err: fmt.Errorf("scanner exited: %w", err)}
	}
	close(s.pairs)
	close(s.done)
}

// readPaths pairs stdout lines two at a time into front/back.
func (s *Session) readPaths(stdout io.Reader) {
	var pending string
	reader := lineproto.NewReader(func(line string) {
		path := strings.TrimSuffix(line, "\n")
		if path == "" {
			return
		}
		if pending == "" {
			pending = path
			return
		}
		s.pairs <- scannedPair{front: pending, back: path}
		pending = ""
	})
	pump(stdout, reader)
	if pending != "" {
		logger.Warn("Scanner ended with an unpaired image: %s", pending)
	}
}

// readDiagnostics logs stderr lines and watches for the imprinter
// signature. Reassembling complete lines first makes the detection
// immune to chunk boundaries.
func (s *Session) readDiagnostics(stderr io.Reader) {
	reader := lineproto.NewReader(func(line string) {
		text := strings.TrimSuffix(line, "\n")
		if text == "" {
			return
		}
		logger.Debug("Scanner: %s", text)
		if strings.Contains(text, imprinterMissingSignature) {
			s.mu.Lock()
			s.imprinterMissing = true
			s.mu.Unlock()
		}
	})
	pump(stderr, reader)
}

func pump(r io.Reader, reader *lineproto.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			reader.Add(string(buf[:n]))
		}
		if err != nil {
			reader.End()
			return
		}
	}
}

// ScanSheet prompts the device for the next sheet and waits for its
// image pair. Returns nil images on a normal end of batch.
func (s *Session) ScanSheet(ctx context.Context) (*driven.SheetImages, error) {
	s.prompt()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case pair, ok := <-s.pairs:
		if !ok {
			return nil, nil
		}
		if pair.err != nil {
			return nil, pair.err
		}
		return &driven.SheetImages{
			FrontPath: pair.front,
			BackPath:  pair.back,
			AuditID:   s.nextAuditID(),
		}, nil
	}
}

// prompt writes the continue token exactly once per requested pair,
// skipping the first request and anything after the device completed.
func (s *Session) prompt() {
	s.mu.Lock()
	first := s.requested == 0
	s.requested++
	s.mu.Unlock()
	if first {
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	if _, err := io.WriteString(s.stdin, continueToken); err != nil {
		logger.Debug("Failed to prompt scanner: %v", err)
	}
}

// nextAuditID returns the id the endorser printed on the sheet just
// scanned, or empty when imprinting is off or the unit is missing.
func (s *Session) nextAuditID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sheetSeq++
	if s.imprintPrefix == "" || s.imprinterMissing {
		return ""
	}
	return fmt.Sprintf("%s%05d", s.imprintPrefix, s.sheetSeq)
}

// EndBatch stops the feeder by closing the subprocess's input stream.
// Only the first call has effect. The process is left to exit on its
// own.
func (s *Session) EndBatch() {
	s.endOnce.Do(func() {
		if err := s.stdin.Close(); err != nil {
			logger.Debug("Failed to close scanner stdin: %v", err)
		}
	})
}

// AcceptSheet is a no-op: the device drops sheets straight through to
// its single output tray.
func (s *Session) AcceptSheet() {}

// RejectSheet is a no-op at the driver level; the operator pulls the
// sheet from the output tray.
func (s *Session) RejectSheet() {}

// ReviewSheet is a no-op at the driver level.
func (s *Session) ReviewSheet() {}
