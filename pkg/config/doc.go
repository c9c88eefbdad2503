// Package config defines the tap configuration and loads it from disk or
// object storage.
//
// A configuration names the streams to extract and the time window:
//
//	streams:
//	  - name: events
//	    table: "`project.dataset.events`"
//	    columns: ["id", "payload", "updated_at"]
//	    datetime_key: updated_at
//	    filters: ["country = 'US'"]
//	start_datetime: "2020-01-01T00:00:00Z"
//	end_datetime: "2020-02-01T00:00:00Z"
//	limit: 1000
//	start_always_inclusive: true
//	warehouse:
//	  type: bigquery
//	  project_id: my-project
//
// JSON documents are accepted as well, since YAML is a superset. Values of
// the form ${VAR} or ${VAR:-default} are expanded from the environment.
//
//	cfg, err := config.LoadConfig(ctx, "gs://bucket/tap.json", filestore.Options{})
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
