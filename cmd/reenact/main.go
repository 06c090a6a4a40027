package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/esimov/reenact"
	"github.com/esimov/reenact/model"
	"github.com/esimov/reenact/utils"
	"golang.org/x/term"
)

const HelpBanner = `
┬─┐┌─┐┌─┐┌┐┌┌─┐┌─┐┌┬┐
├┬┘├┤ ├┤ │││├─┤│   │
┴└─└─┘└─┘┘└┘┴ ┴└─┘ ┴

One-shot face reenactment.
    Version: %s

`

// Version indicates the current build version.
var Version string

// envConfig holds the defaults of the command line flags, read from the environment.
type envConfig struct {
	Config     string `env:"REENACT_CONFIG"`
	Checkpoint string `env:"REENACT_CHECKPOINT"`
	Generator  string `env:"REENACT_GENERATOR" envDefault:"spade"`
	Device     string `env:"REENACT_DEVICE" envDefault:"cpu"`
	ImagesDir  string `env:"REENACT_SRC_DIR"`
	TargetsDir string `env:"REENACT_DRIVING_DIR"`
	Dst        string `env:"REENACT_OUT_DIR" envDefault:"result"`
	Sources    string `env:"REENACT_IDS"`
	Size       int    `env:"REENACT_SIZE" envDefault:"256"`
	Cascade    string `env:"REENACT_CASCADE"`
	Workers    int    `env:"REENACT_WORKERS" envDefault:"4"`
}

// optionalFloat is a float flag which remembers whether it has been set.
type optionalFloat struct {
	val *float64
}

func (f *optionalFloat) String() string {
	if f.val == nil {
		return ""
	}
	return strconv.FormatFloat(*f.val, 'f', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.val = &v
	return nil
}

// parseIDs splits the comma separated source ids, dropping the empty ones.
func parseIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// localPath downloads the resource when path is an URL and returns the local file name.
// The returned cleanup function removes the downloaded file.
func localPath(path, pattern string) (string, func(), error) {
	if !utils.IsValidUrl(path) {
		return path, func() {}, nil
	}
	f, err := utils.DownloadFile(path, pattern)
	if err != nil {
		return "", nil, err
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

var (
	cleanupMu sync.Mutex
	// cleanups are run in reverse order before the program exits.
	cleanups []func()
)

func onExit(fn func()) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanups = append(cleanups, fn)
}

func runCleanups() {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// describeView lists the free view angles, falling back to the estimated ones when unset.
func describeView(yaw, pitch, roll *float64) string {
	angle := func(name string, v *float64) string {
		if v == nil {
			return name + " estimated"
		}
		return name + " " + utils.FormatAngle(*v)
	}
	return strings.Join([]string{angle("yaw", yaw), angle("pitch", pitch), angle("roll", roll)}, ", ")
}

// fatalf removes the temporary files, then prints the error and exits.
func fatalf(msg string, err error) {
	runCleanups()
	log.Fatalf("%s %s",
		utils.DecorateText(msg, utils.ErrorMessage),
		utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
	)
}

func main() {
	log.SetFlags(0)
	defer runCleanups()

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		fatalf("Invalid environment:", err)
	}

	var yaw, pitch, roll optionalFloat
	var (
		// Flags
		configPath = flag.String("config", cfg.Config, "Model configuration (path or URL)")
		ckptPath   = flag.String("checkpoint", cfg.Checkpoint, "Model checkpoint (path or URL)")
		variant    = flag.String("gen", cfg.Generator, fmt.Sprintf("Generator variant %v", model.Variants()))
		device     = flag.String("device", cfg.Device, "Device the networks run on (cpu, gpu)")
		imagesDir  = flag.String("src", cfg.ImagesDir, "Directory of the source and driving face images")
		targetsDir = flag.String("driving", cfg.TargetsDir, "Directory listing the driving targets as <id>/<id>_to_<target>.png")
		dst        = flag.String("out", cfg.Dst, "Destination directory")
		ids        = flag.String("ids", cfg.Sources, "Comma separated source ids")
		size       = flag.Int("size", cfg.Size, "Frame size")
		freeView   = flag.Bool("free-view", false, "Override the driving head rotation with -yaw, -pitch and -roll")
		relative   = flag.Bool("relative", false, "Use the relative keypoint motion (requires -normalize)")
		adapt      = flag.Bool("adapt-scale", false, "Adapt the movement scale (requires -normalize)")
		normalize  = flag.Bool("normalize", false, "Normalize the driving keypoints")
		faceDetect = flag.Bool("face", false, "Crop the images around the detected face")
		cascade    = flag.String("cc", cfg.Cascade, "Pigo face cascade classifier")
		trace      = flag.Bool("trace", false, "Save the head pose chart of every source")
		refPi      = flag.Bool("ref-pi", false, "Convert the angles with the truncated π of the reference outputs")
		workers    = flag.Int("conc", cfg.Workers, "Number of images to decode concurrently")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)
	flag.Var(&yaw, "yaw", "Free view yaw in degrees")
	flag.Var(&pitch, "pitch", "Free view pitch in degrees")
	flag.Var(&roll, "roll", "Free view roll in degrees")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		utils.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	sources := parseIDs(*ids)
	if len(*configPath) == 0 || len(*ckptPath) == 0 || len(sources) == 0 {
		flag.Usage()
		log.Fatal(utils.DecorateText("\nPlease provide a model configuration, a checkpoint and at least one source id!", utils.ErrorMessage) +
			utils.DefaultColor)
	}
	if *faceDetect && len(*cascade) == 0 {
		log.Fatal(utils.DecorateText("Please specify a face classifier in case you are using the -face flag!", utils.ErrorMessage))
	}

	dev, err := reenact.ParseDevice(*device)
	if err != nil {
		fatalf("Invalid device:", err)
	}

	cfgFile, cleanCfg, err := localPath(*configPath, "reenact-*.yaml")
	if err != nil {
		fatalf("Failed to load the model configuration:", err)
	}
	onExit(cleanCfg)
	ckptFile, cleanCkpt, err := localPath(*ckptPath, "reenact-*.zip")
	if err != nil {
		fatalf("Failed to load the model checkpoint:", err)
	}
	onExit(cleanCkpt)

	models, err := model.Load(cfgFile, ckptFile, *variant, dev == reenact.GPU)
	if err != nil {
		fatalf("Failed to load the models:", err)
	}

	anim := models.Animator()
	anim.FreeView = *freeView
	anim.Yaw, anim.Pitch, anim.Roll = yaw.val, pitch.val, roll.val
	anim.Normalize = *normalize
	anim.Relative = *relative
	anim.AdaptMovementScale = *adapt
	anim.ReferencePi = *refPi

	proc := &reenact.Processor{
		Animator:  anim,
		FrameSize: *size,
	}
	if *faceDetect {
		proc.Cropper, err = reenact.NewFaceCropper(*cascade)
		if err != nil {
			fatalf("Failed to load the face classifier:", err)
		}
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		proc.Spinner = utils.NewSpinner("", time.Millisecond*100, true)

		// Capture CTRL-C signal and restore the cursor visibility back.
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-signalChan
			proc.Spinner.RestoreCursor()
			runCleanups()
			os.Exit(1)
		}()
	}

	if *freeView {
		fmt.Fprintf(os.Stderr, "Free view: %s\n", utils.DecorateText(describeView(yaw.val, pitch.val, roll.val), utils.StatusMessage))
	}

	now := time.Now()
	results, err := proc.Execute(&reenact.Ops{
		ImagesDir:  *imagesDir,
		TargetsDir: *targetsDir,
		Dst:        *dst,
		Sources:    sources,
		Workers:    *workers,
		Trace:      *trace,
	})
	for _, res := range results {
		fmt.Fprintf(os.Stderr, "\n%s animated with %s frames in %s\n",
			utils.DecorateText(res.Source, utils.SuccessMessage),
			utils.DecorateText(strconv.Itoa(len(res.Outputs)), utils.StatusMessage),
			utils.FormatTime(res.Elapsed),
		)
		if res.Trace != "" {
			fmt.Fprintf(os.Stderr, "The head pose chart has been saved as: %s\n",
				utils.DecorateText(filepath.Base(res.Trace), utils.SuccessMessage))
		}
	}
	if err != nil {
		fatalf("\nError animating the source images:", err)
	}
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
}
