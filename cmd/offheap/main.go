// Command offheap works with off-heap collections from the shell: it
// deduplicates large inputs through a disk-backed set and inspects
// persistent collection directories.
package main

func main() {
	Execute()
}
