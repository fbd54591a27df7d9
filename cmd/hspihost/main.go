// Command hspihost is the resident, multi-client script host: it binds
// a websocket/TCP front end (pkg/scripthost), backed by a sqlite script
// store (pkg/scriptstore) and an optional TLS listener (pkg/tls). This
// is the one binary in this repo with persisted configuration
// (pkg/configuration) and structured logging (pkg/logger) — the core
// interpreter (pkg/hsp) stays config-file-free by design, only the
// resident host needs a settings file and a log sink.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/antibyte/hspc/pkg/configuration"
	"github.com/antibyte/hspc/pkg/logger"
	"github.com/antibyte/hspc/pkg/scripthost"
	"github.com/antibyte/hspc/pkg/scriptstore"
	tlsmanager "github.com/antibyte/hspc/pkg/tls"
)

func main() {
	configPath := "hspihost.cfg"
	if err := configuration.Initialize(configPath); err != nil {
		fmt.Printf("error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(); err != nil {
		fmt.Printf("error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("hspihost started - configuration loaded from: %s", configPath)

	storePath := configuration.GetString("Store", "db_file", "scripts.db")
	store, err := scriptstore.Open(storePath)
	if err != nil {
		logger.Fatal(logger.AreaDatabase, "script store initialization failed: %v", err)
	}
	defer store.Close()
	logger.Info(logger.AreaDatabase, "script store opened: %s", storePath)

	manager := scripthost.NewManager()

	http.HandleFunc("/run", manager.HandleWebSocket)

	tlsMgr, err := tlsmanager.NewTLSManager()
	if err != nil {
		logger.Fatal(logger.AreaSecurity, "TLS manager initialization failed: %v", err)
	}

	tcpAddr := configuration.GetString("Network", "tcp_bind_addr", ":6800")
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		logger.Fatal(logger.AreaGeneral, "tcp listener failed: %v", err)
	}
	logger.Info(logger.AreaGeneral, "script host TCP front end listening on %s", tcpAddr)
	go func() {
		if err := scripthost.ServeTCP(manager, ln); err != nil {
			logger.Error(logger.AreaGeneral, "tcp front end stopped: %v", err)
		}
	}()

	if tlsMgr.IsEnabled() {
		httpsPort := tlsMgr.GetHTTPSPort()
		logger.Info(logger.AreaSecurity, "script host HTTPS/WSS listening on :%s", httpsPort)
		server := &http.Server{Addr: ":" + httpsPort, TLSConfig: tlsMgr.GetTLSConfig()}
		certFile, keyFile := tlsMgr.GetCertFiles()
		if err := server.ListenAndServeTLS(certFile, keyFile); err != nil {
			logger.Fatal(logger.AreaSecurity, "https server failed: %v", err)
		}
		return
	}

	httpPort := configuration.GetString("Network", "http_port", "8765")
	logger.Info(logger.AreaGeneral, "script host websocket listening on :%s", httpPort)
	if err := http.ListenAndServe(":"+httpPort, nil); err != nil {
		logger.Fatal(logger.AreaGeneral, "http server failed: %v", err)
	}
}
