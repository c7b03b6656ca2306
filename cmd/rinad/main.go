// Command rinad is the RINA IPC Manager daemon: it wires the Transport,
// Security Manager, Flow Allocator, IPC Process registry, and Event bus
// together and exposes them through a urfave/cli command surface.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/rinad/rinad/internal/appargs"
	"github.com/rinad/rinad/internal/catalog"
	"github.com/rinad/rinad/internal/config"
	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/eventbus"
	"github.com/rinad/rinad/internal/flowallocator"
	"github.com/rinad/rinad/internal/ipcprocess"
	"github.com/rinad/rinad/internal/log"
	"github.com/rinad/rinad/internal/naming"
	"github.com/rinad/rinad/internal/rib"
	"github.com/rinad/rinad/internal/ribpaths"
	"github.com/rinad/rinad/internal/security"
	"github.com/rinad/rinad/internal/transport"
	"github.com/rinad/rinad/internal/version"
)

// ipcManagerPortID addresses the IPC Manager itself, for control messages
// (application registration, directory lookups) that do not belong to any
// particular flow's port-id.
const ipcManagerPortID = 0

// daemon bundles every live component once the CLI has loaded its config.
type daemon struct {
	cfg       config.Config
	log       *logrus.Entry
	bus       *eventbus.Bus
	processes *ipcprocess.Registry
	security  *security.Manager
	allocator *flowallocator.Allocator
	rib       rib.Store
	transport *transport.Transport
}

func newDaemon(cfg config.Config, conn net.Conn) *daemon {
	l := log.G(context.Background())
	bus := eventbus.New()
	store := rib.NewMemStore()

	tr := transport.New(conn, l)
	tr.Start()

	sec := security.New(l, bus)
	none := security.NewNonePolicySet("1.0")
	_ = sec.AddPolicySet(security.AuthNone, none)

	alloc := flowallocator.New(tr, cfg.QoSCubes(), nil, nil, cfg.MPL(), l)
	alloc.SetRIB(store)
	for _, cube := range cfg.QoSCubes() {
		_ = store.Put(fmt.Sprintf("%s%d", ribpaths.QoSCubes, cube.ID), cube)
	}
	_ = store.Put(ribpaths.DataTransferConstants, cfg.MPL())

	d := &daemon{
		cfg: cfg, log: l, bus: bus,
		processes: ipcprocess.New(), security: sec, allocator: alloc,
		rib: store, transport: tr,
	}
	go d.dispatchLoop(context.Background())
	return d
}

// dispatchLoop is the control plane's receive side: every inbound message
// the Transport hands back from Recv is routed here to the Flow Allocator's
// remote-initiator path or the Security Manager, per its concrete type.
// It runs until Recv reports the transport is closed or ctx is canceled.
func (d *daemon) dispatchLoop(ctx context.Context) {
	for {
		_, msg, err := d.transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.WithError(err).Warn("dispatch: receive failed, stopping")
			return
		}
		d.dispatch(ctx, msg)
	}
}

func (d *daemon) dispatch(ctx context.Context, msg catalog.Message) {
	switch m := msg.(type) {
	case *catalog.IpcmAllocateFlowRequest:
		flowID := naming.FlowID{
			SourceName:   m.SourceAppName,
			DestName:     m.DestAppName,
			DIFName:      m.DIFName,
			PortIDRemote: m.Header.SourcePortID,
		}
		fai, err := d.allocator.CreateFlowRequestArrived(ctx, m.Header.SourcePortID, flowID, m.FlowSpecification)
		if err != nil {
			d.log.WithError(err).Warn("dispatch: create-flow-request-arrived failed")
			return
		}
		// No interactive application surface exists yet, and the N-1
		// datapath this would normally wait on isn't wired in either, so
		// the daemon accepts on the application's behalf and confirms the
		// connection update immediately.
		if err := d.allocator.SubmitAllocateResponse(ctx, fai, true); err != nil {
			d.log.WithError(err).Warn("dispatch: submit-allocate-response failed")
			return
		}
		if err := d.allocator.ProcessUpdateConnectionResponse(fai, true); err != nil {
			d.log.WithError(err).Warn("dispatch: process-update-connection-response failed")
		}

	case *catalog.AppAllocateFlowRequestResult:
		fai, ok := d.allocator.Lookup(m.Header.DestPortID)
		if !ok {
			d.log.WithField("port-id", m.Header.DestPortID).Warn("dispatch: allocate-flow-request-result for unknown flow")
			return
		}
		if err := d.allocator.ProcessCreateConnectionResult(fai, m.Result == errdefs.ResultOK); err != nil {
			d.log.WithError(err).Warn("dispatch: process-create-connection-result failed")
		}

	case *catalog.AppDeallocateFlowRequest:
		fai, ok := d.allocator.Lookup(m.Header.DestPortID)
		if !ok {
			d.log.WithField("port-id", m.Header.DestPortID).Warn("dispatch: deallocate-flow-request for unknown flow")
			return
		}
		if err := d.allocator.DeleteFlowRequestMessageReceived(fai); err != nil {
			d.log.WithError(err).Warn("dispatch: delete-flow-request-message-received failed")
		}

	case *catalog.AuthExchange:
		auth := security.AuthMessage{ObjectClass: m.ObjectClass, ObjectName: m.ObjectName, Payload: m.Payload}
		if _, err := d.security.ProcessIncoming(m.Header.SourcePortID, auth); err != nil {
			d.log.WithError(err).Warn("dispatch: security process-incoming failed")
		}

	default:
		d.log.WithField("op-code", msg.Base().OpCode).Debug("dispatch: no handler registered for this op-code")
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "rinad"
	app.Usage = "RINA IPC Manager daemon"
	app.Version = version.Version

	var configPath string
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config",
			Usage:       "path to the daemon's TOML configuration file",
			Destination: &configPath,
			Value:       "/etc/rinad/rinad.toml",
		},
	}

	app.Commands = []cli.Command{
		assignToDIFCommand(&configPath),
		allocateFlowCommand(&configPath),
		registerApplicationCommand(&configPath),
		queryRIBCommand(&configPath),
		dumpStacksCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func loadDaemon(configPath string) (*daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "loading daemon config from %s", configPath)
	}
	conn, _ := net.Pipe() // placeholder loopback until a real transport dial is wired in
	return newDaemon(cfg, conn), nil
}

func assignToDIFCommand(configPath *string) cli.Command {
	return cli.Command{
		Name:      "assign-to-dif",
		Usage:     "assign this IPC Process to a DIF",
		ArgsUsage: "<dif-name>",
		Before:    appargs.Validate(appargs.RequiredNonEmpty),
		Action: func(c *cli.Context) error {
			d, err := loadDaemon(*configPath)
			if err != nil {
				return err
			}
			familyID, err := d.transport.Bind(context.Background(), d.cfg.FamilyName)
			if err != nil {
				return errors.Wrapf(err, "binding transport family %q", d.cfg.FamilyName)
			}
			d.log.WithField("dif-name", c.Args().Get(0)).WithField("family-id", familyID).Info("assigned to DIF")
			return nil
		},
	}
}

func allocateFlowCommand(configPath *string) cli.Command {
	return cli.Command{
		Name:      "allocate-flow",
		Usage:     "allocate a flow to a destination application",
		ArgsUsage: "<source-app> <dest-app>",
		Before:    appargs.Validate(appargs.RequiredNonEmpty, appargs.RequiredNonEmpty),
		Action: func(c *cli.Context) error {
			d, err := loadDaemon(*configPath)
			if err != nil {
				return err
			}
			flowID := naming.FlowID{
				SourceName: naming.ApplicationName{ProcessName: c.Args().Get(0)},
				DestName:   naming.ApplicationName{ProcessName: c.Args().Get(1)},
			}
			fai, err := d.allocator.SubmitAllocateRequest(context.Background(), flowID, naming.FlowSpec{})
			if err != nil {
				return errors.Wrapf(err, "allocating flow %s -> %s", c.Args().Get(0), c.Args().Get(1))
			}
			d.log.WithField("port-id", fai.PortID()).WithField("state", fai.State()).Info("flow allocation submitted")
			return nil
		},
	}
}

func registerApplicationCommand(configPath *string) cli.Command {
	return cli.Command{
		Name:      "register-application",
		Usage:     "register an application process with this IPC Process",
		ArgsUsage: "<app-name> <dif-name>",
		Before:    appargs.Validate(appargs.RequiredNonEmpty, appargs.RequiredNonEmpty),
		Action: func(c *cli.Context) error {
			d, err := loadDaemon(*configPath)
			if err != nil {
				return err
			}
			req := &catalog.AppRegisterApplicationRequest{
				ApplicationName: naming.ApplicationName{ProcessName: c.Args().Get(0)},
				DIFName:         naming.ApplicationName{ProcessName: c.Args().Get(1)},
			}
			if err := d.transport.Send(context.Background(), ipcManagerPortID, req); err != nil {
				return errors.Wrapf(err, "registering application %q with DIF %q", c.Args().Get(0), c.Args().Get(1))
			}
			d.log.WithField("app-name", c.Args().Get(0)).WithField("dif-name", c.Args().Get(1)).Info("register-application request sent")
			return nil
		},
	}
}

func queryRIBCommand(configPath *string) cli.Command {
	return cli.Command{
		Name:      "query-rib",
		Usage:     "list RIB objects under a path prefix",
		ArgsUsage: "<path-prefix>",
		Before:    appargs.Validate(appargs.Optional),
		Action: func(c *cli.Context) error {
			d, err := loadDaemon(*configPath)
			if err != nil {
				return err
			}
			prefix := c.Args().Get(0)
			for path, v := range d.rib.List(prefix) {
				fmt.Printf("%s = %v\n", path, v)
			}
			return nil
		},
	}
}

func dumpStacksCommand() cli.Command {
	return cli.Command{
		Name:  "dump-stacks",
		Usage: "print every goroutine's stack trace, for debugging a stuck daemon",
		Action: func(c *cli.Context) error {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Print(string(buf[:n]))
			return nil
		},
	}
}
