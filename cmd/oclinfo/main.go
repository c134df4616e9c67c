// oclinfo lists the compute platforms and devices available, and can create a context or run a demo solve on them.
//
// The backend is selected with --backend (format "<name>[:<config>]", e.g. "opencl" or "sim:platforms.yaml"),
// or the GOVCL_BACKEND environment variable. If neither is given and no OpenCL platform can be listed (no
// library, or no vendor driver installed), the simulated backend is used.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/govcl/clapi"
	_ "github.com/gomlx/govcl/clapi/opencl"
	"github.com/gomlx/govcl/clapi/sim"
	"github.com/gomlx/govcl/dtypes"
	"github.com/gomlx/govcl/linalg"
	"github.com/gomlx/govcl/ocl"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

var (
	flagBackend    string
	flagPlatform   int
	flagOnly       int
	flagFull       bool
	flagDeviceType string
	flagDType      string
	flagSize       int
)

func main() {
	klog.InitFlags(nil)
	if err := newRootCmd().Execute(); err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "oclinfo",
		Short:         "list compute platforms and devices, and run a demo on them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "",
		fmt.Sprintf("backend to use, in the format <name>[:<config>], one of %v (default: $%s)", clapi.Registered(), clapi.BackendEnv))
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	platformsCmd := &cobra.Command{
		Use:   "platforms",
		Short: "list platforms",
		Args:  cobra.NoArgs,
		RunE:  withRegistry(listPlatforms),
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "list devices",
		Args:  cobra.NoArgs,
		RunE:  withRegistry(listDevices),
	}
	devicesCmd.Flags().IntVar(&flagOnly, "platform", -1, "list only the devices of this platform index")
	devicesCmd.Flags().BoolVar(&flagFull, "full", false, "print all the attributes of each device")

	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "create a context and print its devices and queues",
		Args:  cobra.NoArgs,
		RunE:  withRegistry(showContext),
	}
	contextCmd.Flags().IntVar(&flagPlatform, "platform", 0, "platform index of the context")
	contextCmd.Flags().StringVar(&flagDeviceType, "device-type", "default", "type of the device: default, cpu, gpu, accelerator or all")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve an upper triangular system on the current context, and print the error",
		Args:  cobra.NoArgs,
		RunE:  withRegistry(demoSolve),
	}
	solveCmd.Flags().IntVar(&flagPlatform, "platform", 0, "platform index of the context")
	solveCmd.Flags().StringVar(&flagDType, "dtype", "float32", "element type: float16, float32 or float64")
	solveCmd.Flags().IntVar(&flagSize, "n", 8, "dimension of the system")

	rootCmd.AddCommand(platformsCmd, devicesCmd, contextCmd, solveCmd)
	return rootCmd
}

// newBackend creates the backend selected by the flags. If no backend was explicitly configured, it falls back
// to the simulated one when the default backend can't be created or has no platforms (e.g. an ICD loader
// without any vendor driver).
func newBackend() (clapi.Backend, error) {
	if flagBackend != "" {
		return clapi.NewWithConfig(flagBackend)
	}
	backend, err := clapi.New()
	if _, found := os.LookupEnv(clapi.BackendEnv); found {
		return backend, err
	}
	return fallbackToSim(backend, err)
}

// fallbackToSim returns backend if it lists at least one platform. Otherwise it closes it and returns the
// simulated backend.
func fallbackToSim(backend clapi.Backend, err error) (clapi.Backend, error) {
	if err == nil {
		if _, err = backend.PlatformIDs(); err == nil {
			return backend, nil
		}
		if closeErr := backend.Close(); closeErr != nil {
			klog.Errorf("failed to close backend %q: %+v", backend.Name(), closeErr)
		}
	}
	klog.Warningf("no compute platform available (%v), using %q", err, sim.BackendName)
	return clapi.NewWithConfig(sim.BackendName)
}

// withRegistry creates the registry for the command, and closes it (and the backend) at the end.
func withRegistry(fn func(w io.Writer, reg *ocl.Registry) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		backend, err := newBackend()
		if err != nil {
			return err
		}
		reg := ocl.NewRegistry(backend)
		defer func() {
			if err := reg.Close(); err != nil {
				klog.Errorf("failed to close registry: %+v", err)
			}
			if err := backend.Close(); err != nil {
				klog.Errorf("failed to close backend %q: %+v", backend.Name(), err)
			}
		}()
		klog.V(1).Infof("using backend %s", backend.Description())
		return fn(cmd.OutOrStdout(), reg)
	}
}

func listPlatforms(w io.Writer, reg *ocl.Registry) error {
	platforms, err := reg.Platforms()
	if err != nil {
		return err
	}
	table := newTable([]string{"#", "Name", "Vendor", "Version", "Profile", "Devices", "Handle"},
		lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Left)
	for ii, p := range platforms {
		devices, err := p.Devices()
		if err != nil {
			return err
		}
		table.Row(strconv.Itoa(ii), p.Name(), p.Vendor(), p.Version(), p.Profile(), strconv.Itoa(len(devices)), p.Handle().String())
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Platforms (%s)", reg.Backend().Name())))
	_, _ = fmt.Fprintln(w, table.Render())
	return nil
}

func listDevices(w io.Writer, reg *ocl.Registry) error {
	platforms, err := reg.Platforms()
	if err != nil {
		return err
	}
	if flagOnly >= len(platforms) {
		return errors.Errorf("invalid --platform=%d, there are %d platforms", flagOnly, len(platforms))
	}
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	table := newTable([]string{"Platform", "#", "Name", "Type", "Units", "Clock", "Global Mem", "FP64", "FP16", "Handle"},
		lipgloss.Right, lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Right,
		lipgloss.Center, lipgloss.Center, lipgloss.Left)
	for pIdx, p := range platforms {
		if flagOnly >= 0 && pIdx != flagOnly {
			continue
		}
		devices, err := p.Devices()
		if err != nil {
			return err
		}
		for dIdx, d := range devices {
			if flagFull {
				_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Platform #%d, device #%d", pIdx, dIdx)))
				_, _ = fmt.Fprint(w, d.FullInfo("  "))
				continue
			}
			info := d.NativeInfo()
			table.Row(strconv.Itoa(pIdx), strconv.Itoa(dIdx), d.Name(), (d.Type() &^ clapi.DeviceTypeDefault).String(),
				strconv.Itoa(int(info.MaxComputeUnits)), fmt.Sprintf("%d MHz", info.MaxClockFrequency),
				humanize.IBytes(info.GlobalMemSize), yesNo(d.DoubleSupport()), yesNo(d.HalfSupport()), d.Handle().String())
		}
	}
	if !flagFull {
		_, _ = fmt.Fprintln(w, titleStyle.Render("Devices"))
		_, _ = fmt.Fprintln(w, table.Render())
	}
	return nil
}

// setupContext configures the current context of the registry with the platform flag.
func setupContext(reg *ocl.Registry) (*ocl.Context, error) {
	ctx := reg.NewContext()
	if err := ctx.SetPlatformIndex(flagPlatform); err != nil {
		return nil, err
	}
	if flagDeviceType != "" {
		deviceType, err := clapi.DeviceTypeString(flagDeviceType)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --device-type")
		}
		if err := ctx.SetDeviceType(deviceType); err != nil {
			return nil, err
		}
	}
	if err := reg.SwitchContext(ctx); err != nil {
		return nil, err
	}
	return reg.CurrentContext()
}

func showContext(w io.Writer, reg *ocl.Registry) error {
	ctx, err := setupContext(reg)
	if err != nil {
		return err
	}
	queue, err := ctx.CurrentQueue()
	if err != nil {
		return err
	}
	table := newTable(nil, lipgloss.Left)
	table.Row("context", ctx.Handle().String())
	table.Row("owned", strconv.FormatBool(ctx.IsOwned()))
	table.Row("platform index", strconv.Itoa(ctx.PlatformIndex()))
	for ii, d := range ctx.Devices() {
		table.Row(fmt.Sprintf("device #%d", ii), fmt.Sprintf("%s (%s)", d.Info(), d.Handle()))
	}
	table.Row("current queue", fmt.Sprintf("%s on %s", queue.Handle(), queue.Device().Name()))
	_, _ = fmt.Fprintln(w, titleStyle.Render("Context"))
	_, _ = fmt.Fprintln(w, table.Render())
	return nil
}

// upperSystem returns an n x n upper triangular matrix and the right-hand side b for the solution x = [1, 2, ..., n].
func upperSystem(n int) (a, b []float64) {
	a = make([]float64, n*n)
	b = make([]float64, n)
	for row := 0; row < n; row++ {
		for col := row; col < n; col++ {
			value := 1.0 / float64(1+col-row)
			if col == row {
				value = float64(n)
			}
			a[row*n+col] = value
			b[row] += value * float64(col+1)
		}
	}
	return
}

func demoSolve(w io.Writer, reg *ocl.Registry) error {
	dtype, err := dtypes.Parse(flagDType)
	if err != nil {
		return err
	}
	if flagSize <= 0 {
		return errors.Errorf("invalid -n=%d", flagSize)
	}
	ctx, err := setupContext(reg)
	if err != nil {
		return err
	}
	device := must.M1(ctx.CurrentDevice())

	n := flagSize
	aValues, bValues := upperSystem(n)
	var a, b *linalg.Matrix
	switch dtype {
	case dtypes.Float16:
		a = must.M1(linalg.NewMatrix(n, n, dtypes.FromFloat64[float16.Float16](aValues)))
		b = linalg.NewVector(dtypes.FromFloat64[float16.Float16](bValues))
	case dtypes.Float32:
		a = must.M1(linalg.NewMatrix(n, n, dtypes.FromFloat64[float32](aValues)))
		b = linalg.NewVector(dtypes.FromFloat64[float32](bValues))
	default:
		a = must.M1(linalg.NewMatrix(n, n, aValues))
		b = linalg.NewVector(bValues)
	}
	x, err := linalg.Solve(reg, a, b, clapi.TagUpper)
	if err != nil {
		return err
	}
	var maxErr float64
	for ii, v := range x.Float64s() {
		maxErr = math.Max(maxErr, math.Abs(v-float64(ii+1)))
	}
	table := newTable(nil, lipgloss.Left)
	table.Row("device", device.Info())
	table.Row("system", a.String())
	table.Row("max error", fmt.Sprintf("%.3g", maxErr))
	_, _ = fmt.Fprintln(w, titleStyle.Render("Solve"))
	_, _ = fmt.Fprintln(w, table.Render())
	return nil
}
