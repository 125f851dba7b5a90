package db

//SchemaVersion is the base contacts schema version written by CreateSchema
const SchemaVersion = 1

//Table and view names shared with the rest of the provider
const (
	TableVersion     = "version"
	TableAccounts    = "accounts"
	TableRawContacts = "raw_contacts"
	TableData        = "data"
	TableMimetypes   = "mimetypes"

	ViewRawContacts = "view_raw_contacts"
)

//Mimetypes of the data rows the provider understands
const (
	MimetypeName  = "vnd.android.cursor.item/name"
	MimetypePhone = "vnd.android.cursor.item/phone_v2"
	MimetypeEmail = "vnd.android.cursor.item/email_v2"
	MimetypePhoto = "vnd.android.cursor.item/photo"
)

var knownMimetypes = []string{
	MimetypeName,
	MimetypePhone,
	MimetypeEmail,
	MimetypePhoto,
}

//RawContactsColumns is the column list of the raw_contacts table as the
//base provider defines it. Feature patches append their own columns
const RawContactsColumns = `
	_id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER REFERENCES accounts(_id),
	sourceid TEXT,
	backup_id TEXT,
	raw_contact_is_read_only INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1,
	dirty INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	contact_id INTEGER REFERENCES contacts(_id),
	aggregation_mode INTEGER NOT NULL DEFAULT 0,
	aggregation_needed INTEGER NOT NULL DEFAULT 1,
	custom_ringtone TEXT,
	send_to_voicemail INTEGER NOT NULL DEFAULT 0,
	times_contacted INTEGER NOT NULL DEFAULT 0,
	last_time_contacted INTEGER,
	starred INTEGER NOT NULL DEFAULT 0,
	pinned INTEGER NOT NULL DEFAULT 0,
	display_name TEXT,
	display_name_alt TEXT,
	display_name_source INTEGER NOT NULL DEFAULT 0,
	phonetic_name TEXT,
	phonetic_name_style TEXT,
	sort_key TEXT COLLATE PHONEBOOK,
	phonebook_label TEXT,
	phonebook_bucket INTEGER,
	sort_key_alt TEXT COLLATE PHONEBOOK,
	phonebook_label_alt TEXT,
	phonebook_bucket_alt INTEGER,
	name_verified INTEGER NOT NULL DEFAULT 0,
	sync1 TEXT,
	sync2 TEXT,
	sync3 TEXT,
	sync4 TEXT`

//RawContactsIndexes are the indexes defined on raw_contacts. Safe to
//issue again after the table is recreated
const RawContactsIndexes = `CREATE INDEX IF NOT EXISTS idx_raw_contacts_account ON raw_contacts (account_id);`

const contactsSchema = `
CREATE TABLE version (
	version INTEGER NOT NULL
);

CREATE TABLE accounts (
	_id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_name TEXT,
	account_type TEXT,
	data_set TEXT
);
CREATE UNIQUE INDEX idx_accounts ON accounts (account_name, account_type, data_set);

CREATE TABLE mimetypes (
	_id INTEGER PRIMARY KEY AUTOINCREMENT,
	mimetype TEXT NOT NULL
);
CREATE UNIQUE INDEX idx_mimetypes ON mimetypes (mimetype);

CREATE TABLE raw_contacts (` + RawContactsColumns + `
);
` + RawContactsIndexes + `

CREATE TABLE data (
	_id INTEGER PRIMARY KEY AUTOINCREMENT,
	package_id INTEGER,
	mimetype_id INTEGER REFERENCES mimetypes(_id) NOT NULL,
	raw_contact_id INTEGER REFERENCES raw_contacts(_id) NOT NULL,
	is_read_only INTEGER NOT NULL DEFAULT 0,
	is_primary INTEGER NOT NULL DEFAULT 0,
	is_super_primary INTEGER NOT NULL DEFAULT 0,
	data_version INTEGER NOT NULL DEFAULT 0,
	data1 TEXT,
	data2 TEXT,
	data3 TEXT,
	data4 TEXT,
	data14 TEXT,
	data15 BLOB,
	data_sync1 TEXT,
	data_sync2 TEXT,
	data_sync3 TEXT,
	data_sync4 TEXT
);
CREATE INDEX idx_data_raw_contact ON data (raw_contact_id);
CREATE INDEX idx_data_mimetype ON data (mimetype_id, raw_contact_id);
`
