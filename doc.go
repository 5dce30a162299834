package tinymvcc

/*
TinyMVCC is the transaction layer of a small relational storage engine, intended for teaching and experimentation. It
gives transactions snapshot isolation over tables whose rows are updated in place, keeping older versions of each row
as undo logs.

The `tinymvcc` module is organized into the following packages:

* `kv/types`: column values, rows and schemas.
* `kv/storage`: the table heap, which stores one physical version of each row together with its row meta.
* `rowcodec` and `kv/util/codec`: the encoding of rows in table pages.
* `kv/transaction`: transactions, undo logs, visibility, conflict detection and the watermark. See its doc.go.
* `kv/tinymvcc-ctl`: a command line tool that runs a scripted demo or a concurrent transfer benchmark.
* `config` and `log`: the TOML configuration and the process-wide logger.
*/
