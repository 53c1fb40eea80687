package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	wbem "github.com/deejross/go-wbem"
	"github.com/deejross/go-wbem/cim"
	"github.com/deejross/go-wbem/cimxml"
	"github.com/deejross/go-wbem/discovery"
	"github.com/deejross/go-wbem/internal/store"
)

// operationCommands returns one subcommand per WBEM operation
func operationCommands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "get-class NAME",
			Short: "Retrieve one class definition",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), cimxml.GetClass, args[0], nil)
			},
		},
		{
			Use:   "enumerate-classes [NAME]",
			Short: "Retrieve class definitions (all classes when NAME is omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), cimxml.EnumerateClasses, optionalArg(args), nil)
			},
		},
		{
			Use:   "enumerate-class-names [NAME]",
			Short: "Retrieve class names (all classes when NAME is omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), cimxml.EnumerateClassNames, optionalArg(args), nil)
			},
		},
		{
			Use:   "get-instance NAME_OR_REF [KEY=VALUE...]",
			Short: "Retrieve one instance by class name plus keybindings, or by reference string",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), cimxml.GetInstance, args[0], args[1:])
			},
		},
		{
			Use:   "enumerate-instances NAME",
			Short: "Retrieve all instances of a class",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), cimxml.EnumerateInstances, args[0], nil)
			},
		},
		{
			Use:   "enumerate-instance-names NAME",
			Short: "Retrieve the instance names of a class",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOperation(cmd.Context(), cimxml.EnumerateInstanceNames, args[0], nil)
			},
		},
	}
}

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// runOperation resolves the connection, builds the target, performs the call
// and prints (and optionally records) the result
func runOperation(ctx context.Context, method, name string, keyArgs []string) error {
	info, err := resolveConnection()
	if err != nil {
		return err
	}
	client := newClient(info)

	target, err := buildTarget(client, method, name, keyArgs)
	if err != nil {
		return err
	}

	resp, err := invoke(ctx, client, method, target)
	if err != nil {
		return err
	}

	printResponse(resp)

	if flagRecord {
		if err := recordResponse(ctx, info, method, name, resp); err != nil {
			return fmt.Errorf("record snapshot: %w", err)
		}
	}
	return nil
}

// buildTarget constructs the Class or Instance target for an operation
func buildTarget(client *wbem.Client, method, name string, keyArgs []string) (cim.Object, error) {
	if method == cimxml.GetInstance {
		kbs := make([]cim.Property, 0, len(keyArgs))
		for _, arg := range keyArgs {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, fmt.Errorf("keybinding %q must be KEY=VALUE", arg)
			}
			kbs = append(kbs, cim.Property{Name: k, Value: cim.String(v), Key: true})
		}
		return client.Instance(name, kbs...)
	}

	if name == "" {
		return nil, nil
	}
	return client.Class(name), nil
}

func invoke(ctx context.Context, client *wbem.Client, method string, target cim.Object) (*cim.Response, error) {
	switch method {
	case cimxml.GetClass:
		return client.GetClass(ctx, target)
	case cimxml.EnumerateClasses:
		return client.EnumerateClasses(ctx, target)
	case cimxml.EnumerateClassNames:
		return client.EnumerateClassNames(ctx, target)
	case cimxml.GetInstance:
		return client.GetInstance(ctx, target)
	case cimxml.EnumerateInstances:
		return client.EnumerateInstances(ctx, target)
	case cimxml.EnumerateInstanceNames:
		return client.EnumerateInstanceNames(ctx, target)
	}
	return nil, fmt.Errorf("%s is not a valid method", method)
}

// printResponse renders results the way the original tool did: instances
// with their properties, or a flat property list, or "No results"
func printResponse(resp *cim.Response) {
	switch {
	case len(resp.Instances) > 0:
		fmt.Println("Results:")
		for _, obj := range resp.Instances {
			switch o := obj.(type) {
			case *cim.Instance:
				fmt.Printf("  %s\n", cim.FormatReference(o))
				if props := nonKeyProperties(o); len(props) > 0 {
					fmt.Println("  Properties:")
					printSortedProperties(props, "    ")
				}
			case *cim.Class:
				fmt.Printf("  %s\n", o.Name)
				for _, def := range o.Properties {
					fmt.Printf("    %s: %s\n", def.Name, def.Type)
				}
			}
		}
	case len(resp.Properties) > 0:
		fmt.Println("Properties:")
		printSortedProperties(resp.Properties, "  ")
	default:
		fmt.Println("No results")
	}
}

func nonKeyProperties(inst *cim.Instance) []cim.Property {
	var props []cim.Property
	for _, p := range inst.Properties() {
		if !p.Key {
			props = append(props, p)
		}
	}
	return props
}

func printSortedProperties(props []cim.Property, indent string) {
	sorted := make([]cim.Property, len(props))
	copy(sorted, props)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	for _, p := range sorted {
		fmt.Printf("%s%s: %s\n", indent, p.Name, propertyText(p.Value))
	}
}

func propertyText(v cim.Value) string {
	switch v.Kind() {
	case cim.KindArray:
		parts := make([]string, 0, len(v.Elems()))
		for _, e := range v.Elems() {
			parts = append(parts, e.Text())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case cim.KindReference:
		if ref := v.Ref(); ref != nil {
			return cim.FormatReference(ref)
		}
		return ""
	default:
		return v.Text()
	}
}

// recordResponse writes the result into the snapshot store
func recordResponse(ctx context.Context, info connectionInfo, method, target string, resp *cim.Response) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := json.Marshal(snapshotResults(resp))
	if err != nil {
		return err
	}

	_, err = db.Save(ctx, store.Snapshot{
		Host:      info.Host,
		Operation: method,
		Target:    target,
		Results:   results,
	})
	return err
}

// snapshotResults flattens a response into JSON-friendly form
func snapshotResults(resp *cim.Response) map[string]any {
	out := map[string]any{"method": resp.Method}

	var refs []string
	for _, obj := range resp.Instances {
		refs = append(refs, cim.FormatReference(obj))
	}
	if len(refs) > 0 {
		out["instances"] = refs
	}

	if len(resp.Properties) > 0 {
		props := make(map[string]string, len(resp.Properties))
		for _, p := range resp.Properties {
			props[p.Name] = propertyText(p.Value)
		}
		out["properties"] = props
	}
	return out
}

var discoverFlagPorts string

var discoverCmd = &cobra.Command{
	Use:   "discover [TARGET...]",
	Short: "Scan the network for CIM-XML endpoints",
	Long: `Scans the given targets (IPs, hostnames or CIDR ranges) for open CIM-XML
ports. Targets default to the discovery section of the config file.
Requires the nmap binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		targets := args
		if len(targets) == 0 {
			targets = cfg.Discovery.Targets
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets given and none configured under discovery.targets")
		}

		opts := []discovery.Option{discovery.WithServiceDetection(true)}
		if discoverFlagPorts != "" {
			opts = append(opts, discovery.WithPorts(discoverFlagPorts))
		} else if cfg.Discovery.Ports != "" {
			opts = append(opts, discovery.WithPorts(cfg.Discovery.Ports))
		}

		scanner := discovery.NewScanner(targets, opts...)
		if !scanner.Available(cmd.Context()) {
			return fmt.Errorf("nmap binary not found in PATH")
		}

		endpoints, err := scanner.Scan(cmd.Context())
		if err != nil {
			return err
		}

		if len(endpoints) == 0 {
			fmt.Println("No endpoints found")
			return nil
		}
		for _, ep := range endpoints {
			if ep.Service != "" {
				fmt.Printf("%s  (%s)\n", ep, ep.Service)
			} else {
				fmt.Println(ep)
			}
		}
		return nil
	},
}

var snapshotsFlagHost string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List recorded operation results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.List(cmd.Context(), snapshotsFlagHost)
		if err != nil {
			return err
		}

		if len(snaps) == 0 {
			fmt.Println("No snapshots recorded")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%d  %s  %s %s  %s\n",
				s.ID, s.TakenAt.Format(time.RFC3339), s.Operation, s.Target, s.Host)
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverFlagPorts, "ports", "", "port set to scan (default 5988,5989)")
	snapshotsCmd.Flags().StringVar(&snapshotsFlagHost, "host", "", "filter snapshots by host")
}
