package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/viper"

	"github.com/hlynr/interceptor/internal/handlers"
)

// runReplay loads a recorded episode and plays it back in real time,
// scaled by the configured playback speed.
func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	seek := fs.Float64("seek", 0, "start playback at this episode time in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s replay <file> [-seek N]", AppName)
	}
	path := fs.Arg(0)

	result, err := dispatchCommand(":REPLAY:LOAD:", path)
	if err != nil {
		return err
	}
	Logger.Info("Episode loaded", "id", result, "path", path)

	if *seek > 0 {
		if _, err := dispatchCommand(":REPLAY:SEEK:", strconv.FormatFloat(*seek, 'f', -1, 64)); err != nil {
			return err
		}
	}

	eng := HandlerSvc.Engine()
	dt := viper.GetFloat64("sim.dt")
	ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	lastReport := time.Now()
	for range ticker.C {
		eng.Tick()
		if time.Since(lastReport) >= time.Second {
			printStatus()
			lastReport = time.Now()
		}
		if eng.Done() {
			break
		}
	}
	Logger.Info("Playback finished", "time", eng.Time())
	return nil
}

func printStatus() {
	result, err := dispatchCommand(":REPLAY:STATUS:")
	if err != nil {
		return
	}
	status, ok := result.(handlers.ReplayStatus)
	if !ok {
		return
	}
	out, err := json.Marshal(status)
	if err != nil {
		return
	}
	fmt.Println(string(out))
}

// runScan lists the recorded episodes found in a directory.
func runScan(args []string) error {
	dir := viper.GetString("storage.memory.outputDir")
	if len(args) > 0 {
		dir = args[0]
	}

	previews, err := EpisodeStore.ScanDir(dir)
	if err != nil {
		return err
	}
	if len(previews) == 0 {
		fmt.Printf("no episodes found in %s\n", dir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EPISODE\tSCENE\tSTART\tDURATION\tOUTCOME\tRADAR\tFILE")
	for _, p := range previews {
		duration, outcome := "?", "?"
		if p.Footer != nil {
			duration = fmt.Sprintf("%.1fs", p.Footer.Duration)
			outcome = p.Footer.Outcome
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\t%s\n",
			p.Header.EpisodeID,
			p.Header.SceneName,
			p.Header.StartTime.Format(time.RFC3339),
			duration,
			outcome,
			p.HasRadar,
			p.Path,
		)
	}
	return w.Flush()
}
