package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	tidal "github.com/Tap30/tidal-go"
)

var (
	propFlags []string
	groupType string
	timestamp string
	asJSON    bool
)

var trackCmd = &cobra.Command{
	Use:   "track <event>",
	Short: "Queue a track event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, opts, err := eventInput()
		if err != nil {
			return err
		}
		return withClient(cmd, func(c *tidal.Client) error {
			c.Track(args[0], props, opts...)
			return nil
		})
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <user-id>",
	Short: "Identify the current user, merging traits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		traits, opts, err := eventInput()
		if err != nil {
			return err
		}
		return withClient(cmd, func(c *tidal.Client) error {
			c.Identify(args[0], traits, opts...)
			return nil
		})
	},
}

var groupCmd = &cobra.Command{
	Use:   "group <group-id>",
	Short: "Associate the current user with a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		traits, opts, err := eventInput()
		if err != nil {
			return err
		}
		if groupType != "" {
			opts = append(opts, tidal.WithGroupType(groupType))
		}
		return withClient(cmd, func(c *tidal.Client) error {
			c.Group(args[0], traits, opts...)
			return nil
		})
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Deliver queued events now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(c *tidal.Client) error {
			result := c.FlushContext(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d, delivered %d, queued %d\n",
				result.EventCount, result.Removed, c.QueueSize())
			if !result.Success {
				return fmt.Errorf("flush incomplete")
			}
			return nil
		})
	},
}

// status reports the client state as seen after restoring from storage.
type status struct {
	QueueSize   int    `json:"queueSize"`
	SessionID   string `json:"sessionId"`
	AnonymousID string `json:"anonymousId"`
	UserID      string `json:"userId,omitempty"`
	Store       string `json:"store"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued events and the current identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noFlush = true
		return withClient(cmd, func(c *tidal.Client) error {
			s := status{
				QueueSize:   c.QueueSize(),
				SessionID:   c.SessionID(),
				AnonymousID: c.AnonymousID(),
				UserID:      c.UserContext().UserID,
				Store:       store.Kind,
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(out, "store:        %s\n", s.Store)
			fmt.Fprintf(out, "queued:       %d\n", s.QueueSize)
			fmt.Fprintf(out, "session:      %s\n", s.SessionID)
			fmt.Fprintf(out, "anonymous id: %s\n", s.AnonymousID)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop queued events and start over with a new anonymous id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(c *tidal.Client) error {
			c.Reset()
			fmt.Fprintf(cmd.OutOrStdout(), "new anonymous id: %s\n", c.AnonymousID())
			return nil
		})
	},
}

var endSessionCmd = &cobra.Command{
	Use:   "end-session",
	Short: "End the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(c *tidal.Client) error {
			c.EndSession()
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{trackCmd, identifyCmd, groupCmd} {
		cmd.Flags().StringArrayVarP(&propFlags, "prop", "p", nil, "key=value property or trait (repeatable)")
		cmd.Flags().StringVar(&timestamp, "timestamp", "", "RFC 3339 event time (default now)")
	}
	groupCmd.Flags().StringVar(&groupType, "type", "", "Group type (default organization)")
	statusCmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")

	rootCmd.AddCommand(trackCmd, identifyCmd, groupCmd, flushCmd, statusCmd, resetCmd, endSessionCmd)
}

func eventInput() (map[string]any, []tidal.EventOption, error) {
	props, err := parseProps(propFlags)
	if err != nil {
		return nil, nil, err
	}
	var opts []tidal.EventOption
	if timestamp != "" {
		ts, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --timestamp: %w", err)
		}
		opts = append(opts, tidal.WithTimestamp(ts))
	}
	return props, opts, nil
}

// parseProps turns key=value pairs into a map. Values are read as YAML
// scalars, so numbers and booleans keep their type.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		props[key] = value
	}
	return props, nil
}
