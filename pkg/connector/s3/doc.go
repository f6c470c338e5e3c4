/*
Package s3 implements a connector backed by an S3 bucket or any S3-compatible
store such as Cloudflare R2 or MinIO.

Records live as "<prefix><escaped name>.json" objects. Credentials come from
connectors.s3.access_key_id / secret_access_key when set, otherwise from the
default AWS credential chain. Set endpoint and use_path_style for
non-AWS stores.
*/
package s3
