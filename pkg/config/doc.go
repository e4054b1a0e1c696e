/*
Package config provides configuration loading and the station directory
layout for Station Calyx.

Configuration is YAML over defaults: Default() produces a fully working
Config, Load() overlays a file, and the CLI overlays flags on top of that.
The Layout type derives every path the coordinator touches from a single
station root, which is the only path the operator ever supplies.

# Usage

	cfg, err := config.Load("/etc/calyx/config.yaml")
	if err != nil {
		return err
	}

	layout := config.NewLayout(cfg.StationRoot)
	if err := layout.EnsureDirs(); err != nil {
		return err
	}

Example config file:

	station_root: /srv/station
	pulse:
	  telemetry_window_seconds: 300
	  prioritize_limit: 5
	  max_executions: 2
	  claim_window_seconds: 300
	  stall_threshold_seconds: 900
	  retain_failed_intents: false
	serve:
	  interval_seconds: 60
	  watch: true
	  listen_addr: ":9464"
	log:
	  level: info
	  json: true

# Integration Points

  - cmd/calyx: loads config, applies flag overrides, builds the Layout
  - pkg/coordinator: consumes PulseConfig values and Layout paths
  - pkg/telemetry, pkg/state, pkg/intent, pkg/manifest, pkg/domain,
    pkg/verify, pkg/escalate, pkg/evidence, pkg/artifact: constructed
    with Layout-derived paths

No package reads environment variables or hardcodes a path; everything
flows through Config and Layout.
*/
package config
