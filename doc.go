/*
Package trie implements the columnar storage core of a worst-case optimal
join engine: relations stored as tries whose levels index one column each.

Every trie node is a Block: the set of keys present at its level under a
common prefix (a set.Set, whose physical layout is chosen per node), plus
optional per-key child handles and payloads.

# Addressing

A block maps a key to a slot in its child and payload arrays in one of two
ways, picked from the density of its set:

1. Dense: the slot is the key itself. Arrays span range+1 slots; lookups
never touch the set.

2. Sparse: the slot is the key's position in the set. Arrays hold one slot
per member; lookups go through set.Find.

A block is sparse when cardinality/range <= 1/256 (or when the range is 0),
and dense otherwise.

# Memory

Blocks and everything they reference live in an Allocator whose memory is
partitioned by worker id. Blocks refer to their children by arena.Ref
handles, not pointers. Nothing is freed individually.

# Binary encoding

**Node record**: prev_index u32, prev_data u32, is_sparse u8, then the set
body (see package set). The linkage pair names the slot and the key the
node hangs under in its parent.

**Trie file**: magic "TRIEBLK1", a length-prefixed msgpack Manifest, then
every level in order, each as a sequence of groups (one per block of the
previous level, in that level's order) of a u32 child count followed by the
children's node records. Annotated tries append a length-prefixed msgpack
array of payloads in tuple order. An xxhash64 of everything before it ends
the file.

All integers are little-endian.

# Catalog

A Catalog stores named tries in Bolt (or in memory for tests): the trie file
bytes in tries/data and the msgpack manifest in tries/manifests, both keyed
by name.
*/
package trie
