package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/root4loot/atlasshot"
	"github.com/root4loot/atlasshot/pkg/municipio"
	"github.com/root4loot/goutils/log"
)

const (
	version = "0.1.0"
	usage   = `USAGE:
  atlasshot [options] [municipio]

INPUT:
  -m,   --municipio              capture a single municipio (id or name)         (Default: all)
  -i,   --input                  municipio list (JSON)                           (Default: data/municipios.json)

CONFIGURATIONS:
  -e,   --engine                 browser engine: rod, chromedp, playwright       (Default: rod)
  -cw,  --capture-width          viewport width                                  (Default: 1920)
  -ch,  --capture-height         viewport height                                 (Default: 1080)
  -nm,  --no-mobile              do not emulate a mobile device                  (Default: false)
  -hd,  --headful                show the browser window                         (Default: false)
  -ua,  --user-agent             specify user agent                              (Default: engine UA)
  -rce, --respect-cert-err       respect certificate errors                      (Default: false)
  -k,   --keep-going             continue with the next municipio on failure     (Default: false)
  -wd,  --warn-duplicates        warn when a chart matches another municipio's   (Default: false)
  -dt,  --duplicate-threshold    similarity percentage for --warn-duplicates     (Default: 96)

OUTPUT:
  -o,   --outfolder              save outputs to specified folder                (Default: ./graph)
  -s,   --silence                silence output
        --debug                  enable debug mode
        --version                display version
`
)

type cli struct {
	*atlasshot.Runner
	Municipio string
	Infile    string
}

func NewCLI() *cli {
	return &cli{
		Runner: atlasshot.NewRunner(),
		Infile: "data/municipios.json",
	}
}

func main() {
	cli := NewCLI()
	cli.parseFlags(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.run(ctx); err != nil {
		log.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

func (cli *cli) run(ctx context.Context) error {
	list, err := municipio.Load(cli.Infile)
	if err != nil {
		return err
	}

	selected, err := municipio.Select(cli.Municipio, list)
	if err != nil {
		return err
	}
	log.Debugf("Capturing %d municipio(s) from %s", len(selected), cli.Infile)

	results := make(chan atlasshot.Result)
	done := make(chan error, 1)

	go func() {
		done <- cli.RunStream(ctx, results, selected...)
	}()

	for result := range results {
		if result.Error != nil {
			continue
		}
		log.Resultf("Screenshot saved to %s", result.Path)
	}

	return <-done
}

func (cli *cli) parseFlags(args []string) {
	var help, ver, debug, noMobile, headful bool

	fs := flag.NewFlagSet("atlasshot", flag.ExitOnError)
	options := atlasshot.DefaultOptions()
	o := cli.Options

	// INPUT
	fs.StringVar(&cli.Municipio, "municipio", "", "")
	fs.StringVar(&cli.Municipio, "m", "", "")
	fs.StringVar(&cli.Infile, "input", cli.Infile, "")
	fs.StringVar(&cli.Infile, "i", cli.Infile, "")

	// CONFIGURATIONS
	fs.StringVar(&o.Engine, "engine", options.Engine, "")
	fs.StringVar(&o.Engine, "e", options.Engine, "")
	fs.IntVar(&o.CaptureWidth, "capture-width", options.CaptureWidth, "")
	fs.IntVar(&o.CaptureWidth, "cw", options.CaptureWidth, "")
	fs.IntVar(&o.CaptureHeight, "capture-height", options.CaptureHeight, "")
	fs.IntVar(&o.CaptureHeight, "ch", options.CaptureHeight, "")
	fs.BoolVar(&noMobile, "no-mobile", false, "")
	fs.BoolVar(&noMobile, "nm", false, "")
	fs.BoolVar(&headful, "headful", false, "")
	fs.BoolVar(&headful, "hd", false, "")
	fs.StringVar(&o.UserAgent, "user-agent", options.UserAgent, "")
	fs.StringVar(&o.UserAgent, "ua", options.UserAgent, "")
	fs.BoolVar(&o.RespectCertificateErrors, "respect-cert-err", options.RespectCertificateErrors, "")
	fs.BoolVar(&o.RespectCertificateErrors, "rce", options.RespectCertificateErrors, "")
	fs.BoolVar(&o.KeepGoing, "keep-going", options.KeepGoing, "")
	fs.BoolVar(&o.KeepGoing, "k", options.KeepGoing, "")
	fs.BoolVar(&o.WarnDuplicates, "warn-duplicates", options.WarnDuplicates, "")
	fs.BoolVar(&o.WarnDuplicates, "wd", options.WarnDuplicates, "")
	fs.IntVar(&o.DuplicateThreshold, "duplicate-threshold", options.DuplicateThreshold, "")
	fs.IntVar(&o.DuplicateThreshold, "dt", options.DuplicateThreshold, "")

	// OUTPUT
	fs.StringVar(&o.OutputFolder, "outfolder", options.OutputFolder, "")
	fs.StringVar(&o.OutputFolder, "o", options.OutputFolder, "")
	fs.BoolVar(&o.Silence, "silence", false, "")
	fs.BoolVar(&o.Silence, "s", false, "")
	fs.BoolVar(&debug, "debug", false, "")
	fs.BoolVar(&help, "help", false, "")
	fs.BoolVar(&help, "h", false, "")
	fs.BoolVar(&ver, "version", false, "")

	fs.Usage = func() {
		fmt.Print(usage)
	}

	fs.Parse(args)

	o.Verbose = debug
	o.Mobile = !noMobile
	o.Headless = !headful
	atlasshot.SetLogLevel(o)

	if help {
		fmt.Print(usage)
		os.Exit(0)
	}

	if ver {
		fmt.Println("atlasshot ", version)
		os.Exit(0)
	}

	if cli.Municipio == "" && fs.NArg() > 0 {
		cli.Municipio = strings.Join(fs.Args(), " ")
	}
}
