/*
Package cvtree provides the tagged value tree that backs a cvforge document,
along with the two algorithms that operate on it before rendering: tag based
filtering and dotted path resolution.

A document is a tree of nodes. Every node carries exactly one payload kind
(empty, scalar, list or map) plus optional metadata: a set of tags, a link and
an explicit flag. Filtering produces a new tree containing only the parts of the
document meant for a given audience, and Resolve looks up a node by a path such
as "work.0.company".

Neither Filter nor Resolve return errors. A miss is a normal outcome and is
reported as an empty tree or a nil node.
*/
package cvtree
