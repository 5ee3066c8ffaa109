// Package alerts turns received snapshots into firing and resolved alerts and
// delivers them to Slack, Teams or generic HTTP webhooks.
//
// Built-in alerts come from the advisory findings of each snapshot (loss and
// CAC spike); extra conditions can be configured as expressions over the
// snapshot metrics (github.com/expr-lang/expr).
package alerts
