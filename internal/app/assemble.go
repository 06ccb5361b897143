package app

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"

	"github.com/ipcluster/controller/internal/config"
	"github.com/ipcluster/controller/internal/controller"
	"github.com/ipcluster/controller/internal/security"
	"github.com/ipcluster/controller/internal/server"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Assembler builds the service group from a resolved configuration
// snapshot. Any malformed setting surfaces as a ConfigError and no
// partial group is returned.
type Assembler struct {
	Settings    config.Settings
	SecurityDir string
	Logger      logpkg.Logger
}

// Assemble constructs both listener services over the backend. The
// client binding carries the task and multiengine capability chains,
// each with its own connection file; the engine binding carries exactly
// one capability.
func (a *Assembler) Assemble(backend *controller.Controller) (*ServiceGroup, error) {
	clientBinding, clientProv, err := a.buildBinding("client", a.Settings.Client)
	if err != nil {
		return nil, err
	}
	engineBinding, engineProv, err := a.buildBinding("engine", a.Settings.Engine)
	if err != nil {
		return nil, err
	}

	taskFurl, err := clientProv.EnsureFurl(security.TaskFurlFile, server.TaskCapability, clientBinding.URL())
	if err != nil {
		return nil, fmt.Errorf("provision task credentials: %w", err)
	}
	mecFurl, err := clientProv.EnsureFurl(security.MultiEngineFurlFile, server.MultiEngineCapability, clientBinding.URL())
	if err != nil {
		return nil, fmt.Errorf("provision multiengine credentials: %w", err)
	}
	engineFurl, err := engineProv.EnsureFurl(security.EngineFurlFile, server.EngineCapability, engineBinding.URL())
	if err != nil {
		return nil, fmt.Errorf("provision engine credentials: %w", err)
	}

	clientSrv := server.NewClient(backend, clientBinding, server.ClientSecrets{
		Task:        taskFurl.Secret,
		MultiEngine: mecFurl.Secret,
	}, a.Logger)
	engineSrv := server.NewEngine(backend, engineBinding, engineFurl.Secret, a.Logger)

	return &ServiceGroup{
		backend: backend,
		listeners: []groupMember{
			{name: "client", srv: clientSrv, addr: clientBinding.Addr()},
			{name: "engine", srv: engineSrv, addr: engineBinding.Addr()},
		},
		logger: a.Logger.With(logpkg.Component("services")),
	}, nil
}

func (a *Assembler) buildBinding(name string, bs config.BindingSettings) (server.Binding, *security.Provisioner, error) {
	if bs.Port < 0 || bs.Port > 65535 {
		return server.Binding{}, nil, configErrorf(name+".port", "invalid port %d", bs.Port)
	}

	port := bs.Port
	if port == 0 {
		p, err := reserveEphemeralPort(bs.IP)
		if err != nil {
			return server.Binding{}, nil, configErrorf(name+".port", "pick ephemeral port: %v", err)
		}
		port = p
	}

	location := bs.Location
	if location == "" {
		if bs.IP != "" && bs.IP != "0.0.0.0" && bs.IP != "::" {
			location = bs.IP
		} else if hn, err := os.Hostname(); err == nil {
			location = hn
		} else {
			location = "127.0.0.1"
		}
	}

	prov := &security.Provisioner{
		Dir:    a.SecurityDir,
		Reuse:  reusePolicy(a.Settings.Global.ReuseFurls, bs),
		Logger: a.Logger,
	}

	binding := server.Binding{IP: bs.IP, Port: port, Location: location}
	if bs.Secure {
		if bs.CertFile == "" {
			return server.Binding{}, nil, configErrorf(name+".cert_file", "required when %s.secure is set", name)
		}
		cert, err := prov.EnsureCertificate(bs.CertFile, certHosts(location, bs.IP))
		if err != nil {
			return server.Binding{}, nil, &ConfigError{
				Setting: name + ".cert_file",
				Reason:  "provision certificate",
				Err:     err,
			}
		}
		binding.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	return binding, prov, nil
}

// reusePolicy resolves the per-binding reuse flag against the global
// default.
func reusePolicy(global bool, bs config.BindingSettings) bool {
	if bs.ReuseFurls != nil {
		return *bs.ReuseFurls
	}
	return global
}

func certHosts(location, ip string) []string {
	hosts := []string{location}
	if ip != "" && ip != location {
		hosts = append(hosts, ip)
	}
	return hosts
}

// reserveEphemeralPort asks the kernel for a free port so the advertised
// location can be written before the listener binds.
func reserveEphemeralPort(ip string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(ip, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
