package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	webview "github.com/webview/webview_go"

	"schemeaccess/pkg/config"
)

var configPath = flag.String("config", "configs/schemeaccess.yaml", "Path to the config file")

// initScript runs on every page load. Alt+R reads the page, Alt+C toggles
// contrast, Alt+= / Alt+- / Alt+0 change the font, Alt+S stops speech.
const initScript = `
(function() {
	window.addEventListener('DOMContentLoaded', function() {
		window.schemeAccessReady();
	});
	var keys = { c: 'contrast', '=': 'font-increase', '+': 'font-increase', '-': 'font-decrease', '0': 'font-reset', s: 'stop' };
	document.addEventListener('keydown', function(e) {
		if (!e.altKey) return;
		var k = e.key.toLowerCase();
		if (k === 'r') {
			e.preventDefault();
			window.schemeAccessReadPage(document.documentElement.outerHTML);
		} else if (keys[k]) {
			e.preventDefault();
			window.schemeAccessCommand(keys[k]);
		}
	}, true);
})();
`

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Webview requires main thread
	runtime.LockOSThread()

	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle(cfg.GUI.Title)
	w.SetSize(cfg.GUI.Width, cfg.GUI.Height, webview.HintNone)
	w.Init(initScript)

	apply := func(script string) {
		w.Dispatch(func() { w.Eval(script) })
	}
	logLine := func(msg string) { fmt.Println(msg) }

	mgr := NewManager(cfg.Server.Address, serverBinary(), time.Duration(cfg.GUI.PollInterval), apply, logLine)
	defer mgr.Stop()

	_ = w.Bind("schemeAccessReady", mgr.PageLoaded)
	_ = w.Bind("schemeAccessReadPage", mgr.ReadPage)
	_ = w.Bind("schemeAccessCommand", mgr.Command)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	w.Navigate(cfg.GUI.PortalURL)
	w.Run()
}

func serverBinary() string {
	if runtime.GOOS == "windows" {
		return "./schemeaccess.exe"
	}
	return "./schemeaccess"
}
