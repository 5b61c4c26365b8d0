package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/teelog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/teelog/internal/shm"
	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

type options struct {
	path     string
	size     uint32
	interval time.Duration
	count    int
	message  string
	long     int
	stdin    bool
	keep     bool
	dev      bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "teelog-sim:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "teelog-sim",
		Short: "Play the secure-world producer of a shared log ring",
		Long: `teelog-sim creates a file-backed region, formats a log ring in it and
writes lines the way a secure-world logger would, so teelogd can be run
without hardware.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.path, "path", shm.DefaultPath("teelog"), "file backing the region")
	fs.Uint32Var(&opts.size, "size", 0x40000, "region size in bytes, header included")
	fs.DurationVar(&opts.interval, "every", 100*time.Millisecond, "delay between generated lines")
	fs.IntVar(&opts.count, "count", 0, "stop after this many generated lines (0 runs until interrupted)")
	fs.StringVar(&opts.message, "message", "secure world heartbeat", "text of generated lines")
	fs.IntVar(&opts.long, "long-every", 0, "make every Nth generated line overlong")
	fs.BoolVar(&opts.stdin, "stdin", false, "copy lines from stdin instead of generating them")
	fs.BoolVar(&opts.keep, "keep", false, "leave the backing file in place on exit")
	fs.BoolVar(&opts.dev, "dev", false, "development logging")
	return cmd
}

func run(ctx context.Context, opts options) error {
	logCfg := logging.DefaultConfig()
	if opts.dev {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Name = "teelog-sim"
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !opts.stdin && opts.interval <= 0 {
		return fmt.Errorf("--every must be positive, got %s", opts.interval)
	}
	if opts.size <= shmlog.DataOffset {
		return fmt.Errorf("size must exceed the %d byte header", shmlog.DataOffset)
	}

	region, err := shm.Create(opts.path, int(opts.size))
	if err != nil {
		return err
	}
	defer func() {
		release := region.Remove
		if opts.keep {
			release = region.Unmap
		}
		if err := release(); err != nil {
			logger.Warn("Failed to release region", zap.Error(err))
		}
	}()

	if _, err := shmlog.Format(region.Bytes()); err != nil {
		return err
	}
	producer, err := shmlog.NewProducer(region.Bytes())
	if err != nil {
		return err
	}
	defer producer.Reset()

	logger.Info("Log ring ready",
		zap.String("path", opts.path),
		zap.Uint32("size", opts.size),
		zap.Int("data_size", int(opts.size)-shmlog.DataOffset),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.stdin {
		return copyLines(ctx, producer, os.Stdin)
	}
	return generate(ctx, producer, opts, logger)
}

// maxStdinLine bounds one stdin line; longer lines fail the copy.
const maxStdinLine = 1 << 20

// copyLines forwards newline-terminated lines from r until EOF or ctx ends.
// The scanning goroutine may stay blocked in Read after ctx ends; it is
// abandoned since the process is exiting.
func copyLines(ctx context.Context, w io.Writer, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxStdinLine)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
				return err
			}
		}
	}
}

func generate(ctx context.Context, w io.Writer, opts options, logger *logging.Logger) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for n := 1; opts.count == 0 || n <= opts.count; n++ {
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			logger.Info("Stopping producer", zap.Int("lines", n-1))
			return nil
		}

		if _, err := io.WriteString(w, line(n, opts)); err != nil {
			return err
		}
	}
	logger.Info("Wrote all lines", zap.Int("lines", opts.count))
	return nil
}

func line(n int, opts options) string {
	text := opts.message
	if opts.long > 0 && n%opts.long == 0 {
		text = strings.Repeat(text+" ", shmlog.DefaultLineMax/len(text+" ")+1)
	}
	return fmt.Sprintf("[%06d] %s\n", n, text)
}
