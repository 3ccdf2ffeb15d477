// accelinfo prints the devices an accelerator runtime exposes, as JSON.
package main

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/janpfeifer/must"
	"github.com/urfave/cli/v3"

	"github.com/Scenerainc/onnxruntime/accel"
	"github.com/Scenerainc/onnxruntime/accel/cpurt"
)

type deviceReport struct {
	Runtime string             `json:"runtime"`
	Devices []accel.Properties `json:"devices"`
}

func main() {
	var pretty bool
	app := &cli.Command{
		Name:  "accelinfo",
		Usage: "List the devices the accelerator runtime exposes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pretty", Usage: "indent the JSON output", Destination: &pretty},
		},
		Action: func(context.Context, *cli.Command) error {
			rt := cpurt.New()
			report := deviceReport{Runtime: rt.Name()}
			count := must.M1(rt.DeviceCount())
			for device := 0; device < count; device++ {
				report.Devices = append(report.Devices, must.M1(rt.Properties(device)))
			}
			var out []byte
			if pretty {
				out = must.M1(json.MarshalIndent(report, "", "  "))
			} else {
				out = must.M1(json.Marshal(report))
			}
			fmt.Println(string(out))
			return nil
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
