/*
Package verso records the historical states of structured content.

Content is identified by a Key, a pair of a content type and a content id,
for example ("page", "42"). Each call to CreateVersion stores an immutable
snapshot of the content under the next version number for that key,
starting from 1. Versions can be listed, read back, compared with each
other, restored, deleted, and purged by age.

A Store keeps everything in a directory tree, one directory per key:

	<root>/<type>/<id>/history.json     ledger of version metadata
	<root>/<type>/<id>/00000001.json    snapshot of version 1
	<root>/<type>/<id>/00000002.json    ...

Snapshot files are written to a scratch area and renamed into place, so a
reader sees either a complete version or no version. The ledger is updated
after the snapshot is published. If the process dies in between, or the
ledger is otherwise lost or damaged, the next reader notices the
disagreement with the directory listing and rebuilds the ledger from the
snapshot files.

Writers to a key exclude each other with a per key lock. Readers take no
locks. Running totals of the number of versions and bytes stored are kept
by a summary.Summary, and can be rebuilt from scratch with Reconcile.
*/
package verso
