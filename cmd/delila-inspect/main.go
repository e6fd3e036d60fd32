// Command delila-inspect analyzes DELILA data files: header and footer
// metadata, event dumps, and integrity verification.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/delila-daq/go-delila/delila"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "delila-inspect").Logger()

	app := &cli.App{
		Name:  "delila-inspect",
		Usage: "inspect and verify DELILA data files",
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print header and footer metadata",
				ArgsUsage: "<file.delila>",
				Action: func(c *cli.Context) error {
					return runInfo(c, log)
				},
			},
			{
				Name:      "dump",
				Usage:     "print decoded events",
				ArgsUsage: "<file.delila>",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:    "max",
						Aliases: []string{"n"},
						Usage:   "stop after this many events (0 = all)",
					},
					&cli.BoolFlag{
						Name:  "waveforms",
						Usage: "decode and summarize waveform samples",
					},
				},
				Action: func(c *cli.Context) error {
					return runDump(c, log)
				},
			},
			{
				Name:      "verify",
				Usage:     "verify checksum and completeness",
				ArgsUsage: "<file.delila>",
				Action: func(c *cli.Context) error {
					return runVerify(c, log)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func openArg(c *cli.Context, log zerolog.Logger, opts ...delila.Option) (*delila.File, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one file argument")
	}
	opts = append(opts, delila.WithLogger(log))
	return delila.Open(c.Args().First(), opts...)
}

func runInfo(c *cli.Context, log zerolog.Logger) error {
	f, err := openArg(c, log)
	if err != nil {
		return err
	}
	defer f.Close()

	if meta := f.Meta(); meta != nil {
		fmt.Printf("Run number:      %d\n", meta.RunNumber)
		fmt.Printf("Experiment:      %s\n", meta.ExpName)
		fmt.Printf("File sequence:   %d\n", meta.FileSequence)
		fmt.Printf("Sorted:          %v\n", meta.IsSorted)
		fmt.Printf("Source IDs:      %v\n", meta.SourceIDs)
		if meta.Comment != "" {
			fmt.Printf("Comment:         %s\n", meta.Comment)
		}
	} else {
		fmt.Println("No run metadata in header")
	}

	if footer := f.Footer(); footer != nil {
		fmt.Printf("\nTotal events:    %d\n", footer.TotalEvents)
		fmt.Printf("Data bytes:      %d\n", footer.DataBytes)
		fmt.Printf("First timestamp: %.1f ns\n", footer.FirstEventTimeNs)
		fmt.Printf("Last timestamp:  %.1f ns\n", footer.LastEventTimeNs)
		fmt.Printf("Write complete:  %v\n", footer.WriteComplete)
		fmt.Printf("Checksum:        %016x\n", footer.DataChecksum)
	} else {
		fmt.Println("\nNo valid footer")
	}

	for _, w := range f.Warnings() {
		log.Warn().Msg(w)
	}
	return nil
}

func runDump(c *cli.Context, log zerolog.Logger) error {
	opts := []delila.Option{delila.WithMaxEvents(c.Uint64("max"))}
	if !c.Bool("waveforms") {
		opts = append(opts, delila.WithoutWaveforms())
	}

	f, err := openArg(c, log, opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Println("Module  Ch  Energy  EShort  Timestamp(ns)      Flags")
	fmt.Println("------  --  ------  ------  -----------------  -----")

	for {
		ev, err := f.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Uint64("decoded", f.EventCount()).Msg("decoding stopped")
			break
		}
		fmt.Printf("%6d  %2d  %6d  %6d  %17.1f  0x%x\n",
			ev.Module, ev.Channel, ev.Energy, ev.EnergyShort, ev.TimestampNs, ev.Flags)
		if wf := ev.Waveform; wf != nil {
			fmt.Printf("        waveform: analog %d/%d, digital %d/%d/%d/%d samples, res=%d, thr=%d\n",
				len(wf.Analog1), len(wf.Analog2),
				len(wf.Digital1), len(wf.Digital2), len(wf.Digital3), len(wf.Digital4),
				wf.TimeResolution, wf.TriggerThreshold)
		}
	}

	fmt.Printf("\n%d events\n", f.EventCount())
	return nil
}

func runVerify(c *cli.Context, log zerolog.Logger) error {
	f, err := openArg(c, log)
	if err != nil {
		return err
	}
	defer f.Close()

	r := f.Validate()
	fmt.Printf("Valid:              %v\n", r.Valid)
	fmt.Printf("Write complete:     %v\n", r.Complete)
	fmt.Printf("Checksum OK:        %v\n", r.ChecksumOK)
	fmt.Printf("Recoverable blocks: %d\n", r.RecoverableBlocks)
	fmt.Printf("Recoverable events: %d\n", r.RecoverableEvents)
	for _, e := range r.Errors {
		log.Warn().Msg(e)
	}
	if !r.Valid {
		if r.NeedsRecovery() {
			log.Warn().Msg("file is invalid but carries recoverable data")
		}
		return cli.Exit("verification failed", 1)
	}
	return nil
}
