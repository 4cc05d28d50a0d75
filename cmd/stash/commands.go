package stash

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/riddopic/garcun/cmd/util"
	store "github.com/riddopic/garcun/lib/stash"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key (write-behind)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := journal.Set(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}

	setSyncCmd = &cobra.Command{
		Use:   "set-sync [key] [value]",
		Short: "Sets the value for a key and waits for durability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := journal.SetSync(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set durably")
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Prints the value stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok := journal.Get(args[0])
			if !ok && value == nil {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(string(value))
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := journal.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}

	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(journal.Has(args[0]))
			return nil
		},
	}

	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range journal.Keys() {
				fmt.Println(key)
			}
			return nil
		},
	}

	lenCmd = &cobra.Command{
		Use:   "len",
		Short: "Prints the number of live keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(journal.Len())
			return nil
		},
	}

	compactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Rewrites the journal, reclaiming dead space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := os.Stat(journal.Path())
			if err != nil {
				return err
			}
			if err := journal.Compact(); err != nil {
				return err
			}
			after, err := os.Stat(journal.Path())
			if err != nil {
				return err
			}
			fmt.Printf("compacted: %d -> %d bytes\n", before.Size(), after.Size())
			return nil
		},
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Walks the raw journal and prints record statistics",
		Args:  cobra.NoArgs,
		RunE:  runInspect,
	}
)

// runInspect streams the journal read-only without loading a store,
// counting records the same way replay would apply them.
func runInspect(_ *cobra.Command, _ []string) error {
	path, err := util.GetStorePath()
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	format := store.NewBinaryFormat()
	if err := unix.Flock(int(file.Fd()), unix.LOCK_SH); err != nil {
		return fmt.Errorf("locking journal: %w", err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	if _, err := format.ReadHeader(file); err != nil {
		return err
	}

	var sets, tombstones int
	var payloadBytes int
	live := map[string]bool{}
	for {
		key, value, tombstone, err := format.ReadRecord(file)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if tombstone {
			tombstones++
			delete(live, string(key))
			continue
		}
		sets++
		payloadBytes += len(key) + len(value)
		live[string(key)] = true
	}

	info, err := file.Stat()
	if err != nil {
		return err
	}

	fmt.Printf("journal:    %s\n", path)
	fmt.Printf("file size:  %d bytes\n", info.Size())
	fmt.Printf("records:    %d sets, %d tombstones\n", sets, tombstones)
	fmt.Printf("payload:    %d bytes\n", payloadBytes)
	fmt.Printf("live keys:  %d\n", len(live))
	if dead := sets + tombstones - len(live); dead > 0 {
		fmt.Printf("dead:       %d records reclaimable by compact\n", dead)
	}
	return nil
}
